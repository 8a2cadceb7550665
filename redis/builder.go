package redis

import (
	"fmt"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/logging"
	"go.uber.org/multierr"
)

type clientEntry struct {
	name      string
	section   string
	configure func(*RedisClientOptions)
}

// Builder Redis 客户端配置构建器
// 客户端名称在添加时确定，配置节在 Build 时才读取
type Builder struct {
	entries     []clientEntry
	names       map[string]struct{}
	errors      error
	pingOnStart bool
	registered  map[string]struct{}
}

// NewBuilder 创建 Redis 构建器
func NewBuilder() *Builder {
	return &Builder{
		names:      make(map[string]struct{}),
		registered: make(map[string]struct{}),
	}
}

// AddClient 添加一个 Redis 客户端配置
func (b *Builder) AddClient(name string, configure func(*RedisClientOptions)) *Builder {
	return b.add(clientEntry{name: name, configure: configure})
}

// AddClientFromConfig 添加一个从配置节读取的客户端，configure 在配置节之后应用
//
// 配置示例（YAML）：
//
//	redis:
//	  cache:
//	    addr: 10.0.0.1:6379
//	    db: 2
//	    dial_timeout: 2s
func (b *Builder) AddClientFromConfig(name, section string, configure func(*RedisClientOptions)) *Builder {
	return b.add(clientEntry{name: name, section: section, configure: configure})
}

func (b *Builder) add(e clientEntry) *Builder {
	if e.name == "" {
		b.errors = multierr.Append(b.errors, fmt.Errorf("redis client name is required"))
		return b
	}
	if _, exists := b.names[e.name]; exists {
		b.errors = multierr.Append(b.errors, fmt.Errorf("redis client '%s' already configured", e.name))
		return b
	}
	b.names[e.name] = struct{}{}
	b.entries = append(b.entries, e)
	return b
}

// PingOnStart 应用启动时检查所有客户端的连接
func (b *Builder) PingOnStart() *Builder {
	b.pingOnStart = true
	return b
}

// Err 返回添加配置时收集的错误
func (b *Builder) Err() error {
	return b.errors
}

// Build 构建 Redis 客户端工厂。cfg 为空时忽略配置节。
func (b *Builder) Build(cfg config.Configuration, logger logging.Logger) (*RedisClientFactory, error) {
	if b.errors != nil {
		return nil, fmt.Errorf("redis configuration errors: %w", b.errors)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	factory := NewRedisClientFactory()
	for _, e := range b.entries {
		opts := NewDefaultOptions(e.name)

		if e.section != "" && cfg != nil && cfg.Exists(e.section) {
			var section clientSection
			if err := cfg.Bind(e.section, &section); err != nil {
				return nil, fmt.Errorf("redis client '%s': %w", e.name, err)
			}
			if err := section.apply(opts); err != nil {
				return nil, fmt.Errorf("redis client '%s': %w", e.name, err)
			}
		}
		if e.configure != nil {
			e.configure(opts)
		}

		if err := opts.Validate(); err != nil {
			factory.Close()
			return nil, fmt.Errorf("invalid redis configuration for '%s': %w", e.name, err)
		}
		if err := factory.Register(*opts); err != nil {
			factory.Close()
			return nil, err
		}

		logger.Info("redis client registered",
			logging.F("name", opts.Name),
			logging.F("addr", opts.Addr),
			logging.F("db", opts.DB))
	}
	return factory, nil
}
