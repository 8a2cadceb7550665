package config

// Load 加载并绑定指定节的配置到结构体 T。section 为空时绑定整个配置。
func Load[T any](cfg Configuration, section string) (T, error) {
	var t T
	err := cfg.Bind(section, &t)
	return t, err
}

// LoadOrDefault 配置节不存在时返回 def；存在时以 def 为基础覆盖
func LoadOrDefault[T any](cfg Configuration, section string, def T) (T, error) {
	if !cfg.Exists(section) {
		return def, nil
	}
	t := def
	err := cfg.Bind(section, &t)
	return t, err
}
