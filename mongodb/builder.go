package mongodb

import (
	"context"
	"fmt"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/logging"
	"go.uber.org/multierr"
)

type clientEntry struct {
	name      string
	uri       string
	section   string
	configure func(*MongoOptions)
}

// Builder MongoDB 配置构建器
type Builder struct {
	entries     []clientEntry
	names       map[string]struct{}
	errors      error
	pingOnStart bool
	registered  map[string]struct{}
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{
		names:      make(map[string]struct{}),
		registered: make(map[string]struct{}),
	}
}

// Add 添加 MongoDB 客户端配置
func (b *Builder) Add(name string, uri string, configure func(*MongoOptions)) *Builder {
	return b.add(clientEntry{name: name, uri: uri, configure: configure})
}

// AddFromConfig 添加从配置节读取的客户端
//
// 配置示例（YAML）：
//
//	mongo:
//	  main:
//	    uri: mongodb://localhost:27017
//	    database: app
//	    timeout: 3s
func (b *Builder) AddFromConfig(name, section string, configure func(*MongoOptions)) *Builder {
	return b.add(clientEntry{name: name, section: section, configure: configure})
}

func (b *Builder) add(e clientEntry) *Builder {
	if e.name == "" {
		b.errors = multierr.Append(b.errors, fmt.Errorf("mongo client name is required"))
		return b
	}
	if _, exists := b.names[e.name]; exists {
		b.errors = multierr.Append(b.errors, fmt.Errorf("mongo client '%s' already configured", e.name))
		return b
	}
	b.names[e.name] = struct{}{}
	b.entries = append(b.entries, e)
	return b
}

// PingOnStart 应用启动时检查所有客户端
func (b *Builder) PingOnStart() *Builder {
	b.pingOnStart = true
	return b
}

// Err 返回添加配置时收集的错误
func (b *Builder) Err() error {
	return b.errors
}

// Build 构建 MongoDB 工厂
func (b *Builder) Build(cfg config.Configuration, logger logging.Logger) (*MongoFactory, error) {
	if b.errors != nil {
		return nil, fmt.Errorf("mongo configuration errors: %w", b.errors)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	factory := NewMongoFactory()
	fail := func(err error) (*MongoFactory, error) {
		return nil, multierr.Append(err, factory.Close(context.Background()))
	}

	for _, e := range b.entries {
		opts := NewDefaultOptions(e.name, e.uri)
		if e.section != "" && cfg != nil && cfg.Exists(e.section) {
			var section clientSection
			if err := cfg.Bind(e.section, &section); err != nil {
				return fail(fmt.Errorf("mongo client '%s': %w", e.name, err))
			}
			if err := section.apply(opts); err != nil {
				return fail(fmt.Errorf("mongo client '%s': %w", e.name, err))
			}
		}
		if e.configure != nil {
			e.configure(opts)
		}

		if err := opts.Validate(); err != nil {
			return fail(fmt.Errorf("invalid mongo configuration for '%s': %w", e.name, err))
		}
		if err := factory.Register(*opts); err != nil {
			return fail(err)
		}

		logger.Info("mongo client registered",
			logging.F("name", opts.Name),
			logging.F("database", opts.Database))
	}
	return factory, nil
}
