package di

// Visibility 限定依赖可以由注入器链上的哪个节点满足。
type Visibility int

const (
	// VisibilityDefault 先查当前注入器，找不到再逐级委托父注入器。
	VisibilityDefault Visibility = iota
	// VisibilitySelf 只允许当前注入器满足依赖。
	VisibilitySelf
	// VisibilitySkipSelf 跳过当前注入器，从父注入器开始查找。
	VisibilitySkipSelf
)

func (v Visibility) String() string {
	switch v {
	case VisibilitySelf:
		return "self"
	case VisibilitySkipSelf:
		return "skipSelf"
	default:
		return "default"
	}
}

// Dep 是依赖清单中的一项。Deps 列表中也可以直接写令牌，等价于 Dep{Token: token}。
type Dep struct {
	Token      any
	Optional   bool
	Visibility Visibility
}

// Self 声明只能由当前注入器满足的依赖
func Self(token any) Dep {
	return Dep{Token: token, Visibility: VisibilitySelf}
}

// SkipSelf 声明必须由祖先注入器满足的依赖
func SkipSelf(token any) Dep {
	return Dep{Token: token, Visibility: VisibilitySkipSelf}
}

// Optional 声明可选依赖，找不到时注入零值。
func Optional(token any) Dep {
	return Dep{Token: token, Optional: true}
}

// Dependency 是解析后的依赖
type Dependency struct {
	Key        DualKey
	Required   bool
	Visibility Visibility
}

// FactoryFunc 接收按 Dependencies 顺序解析好的参数，返回实例。
type FactoryFunc func(args []any) (any, error)

// ResolvedFactory 一个可调用的工厂及其依赖列表
type ResolvedFactory struct {
	Fn           FactoryFunc
	Dependencies []Dependency
}

// ResolvedProvider 是规范化后的提供者。非 multi 提供者恰好有一个工厂。
type ResolvedProvider struct {
	Key       DualKey
	Factories []ResolvedFactory
	Multi     bool
}
