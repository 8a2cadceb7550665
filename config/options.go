package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gocrud/modkit/di"
)

// Option 静态配置选项：启动时绑定一次
type Option[T any] interface {
	Value() T
}

// OptionMonitor 监听配置选项：总是返回最近一次重新加载后的值
type OptionMonitor[T any] interface {
	Value() T
}

// OptionsCache 绑定配置节并在配置重新加载时刷新
type OptionsCache[T any] struct {
	config  Configuration
	section string

	mu      sync.RWMutex
	current T
	err     error
}

// NewOptionsCache 创建配置缓存。配置节不存在时保持零值，Err 返回绑定错误。
func NewOptionsCache[T any](config Configuration, section string) *OptionsCache[T] {
	cache := &OptionsCache[T]{config: config, section: section}
	cache.reload()

	if rc, ok := config.(interface{ OnReload(func()) }); ok {
		rc.OnReload(cache.reload)
	}
	return cache
}

func (c *OptionsCache[T]) reload() {
	var next T
	err := c.config.Bind(c.section, &next)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	if err == nil {
		c.current = next
	}
}

// Get 获取当前配置值
func (c *OptionsCache[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Err 返回最近一次绑定的错误
func (c *OptionsCache[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Snapshot 返回当前值的深拷贝
func (c *OptionsCache[T]) Snapshot() T {
	current := c.Get()

	data, err := json.Marshal(current)
	if err != nil {
		return current
	}
	var snapshot T
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return current
	}
	return snapshot
}

// Value 实现 OptionMonitor
func (c *OptionsCache[T]) Value() T {
	return c.Get()
}

type option[T any] struct {
	value T
}

func (o *option[T]) Value() T {
	return o.value
}

// NewOption 创建静态配置选项
func NewOption[T any](value T) Option[T] {
	return &option[T]{value: value}
}

// Options 返回把配置节 section 绑定为 Option[T] 和 OptionMonitor[T] 的提供者。
// 提供者依赖 Configuration，通常放在 ProvidersPerApp 中。
//
// 示例：
//
//	core.Module{ProvidersPerApp: config.Options[RedisSettings]("redis")}
//	func NewCache(opts config.Option[RedisSettings]) *Cache { ... }
func Options[T any](section string) []any {
	cacheToken := di.TypeOf[*OptionsCache[T]]()
	return []any{
		di.FactoryProvider{
			Token: cacheToken,
			UseFactory: func(cfg Configuration) *OptionsCache[T] {
				return NewOptionsCache[T](cfg, section)
			},
			Deps: []any{ConfigurationToken},
		},
		di.FactoryProvider{
			Token: di.TypeOf[Option[T]](),
			UseFactory: func(cache *OptionsCache[T]) (Option[T], error) {
				if err := cache.Err(); err != nil {
					return nil, fmt.Errorf("config: section %q: %w", section, err)
				}
				return NewOption(cache.Snapshot()), nil
			},
			Deps: []any{cacheToken},
		},
		di.TokenProvider{Token: di.TypeOf[OptionMonitor[T]](), UseToken: cacheToken},
	}
}

// ConfigurationToken 是 Configuration 在注入器中的令牌
var ConfigurationToken = di.TypeOf[Configuration]()
