package database

import (
	"fmt"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/logging"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type databaseEntry struct {
	name      string
	dialector gorm.Dialector
	section   string
	configure func(*DatabaseOptions)
}

// Builder 数据库配置构建器
type Builder struct {
	entries    []databaseEntry
	names      map[string]struct{}
	errors     error
	registered map[string]struct{}
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{
		names:      make(map[string]struct{}),
		registered: make(map[string]struct{}),
	}
}

// Add 添加数据库配置
// name: 实例名称
// dialector: GORM 驱动 (e.g. sqlite.Open(dsn))
// configure: 可选的配置函数
func (b *Builder) Add(name string, dialector gorm.Dialector, configure func(*DatabaseOptions)) *Builder {
	if dialector == nil {
		b.errors = multierr.Append(b.errors, fmt.Errorf("database '%s': dialector is required", name))
		return b
	}
	return b.add(databaseEntry{name: name, dialector: dialector, configure: configure})
}

// AddFromConfig 添加从配置节读取的数据库，配置节中的 driver 目前只支持 sqlite
//
// 配置示例（YAML）：
//
//	database:
//	  master:
//	    dsn: file:app.db?cache=shared
//	    max_open_conns: 5
func (b *Builder) AddFromConfig(name, section string, configure func(*DatabaseOptions)) *Builder {
	return b.add(databaseEntry{name: name, section: section, configure: configure})
}

func (b *Builder) add(e databaseEntry) *Builder {
	if e.name == "" {
		b.errors = multierr.Append(b.errors, fmt.Errorf("database name is required"))
		return b
	}
	if _, exists := b.names[e.name]; exists {
		b.errors = multierr.Append(b.errors, fmt.Errorf("database '%s' already configured", e.name))
		return b
	}
	b.names[e.name] = struct{}{}
	b.entries = append(b.entries, e)
	return b
}

// Err 返回添加配置时收集的错误
func (b *Builder) Err() error {
	return b.errors
}

// Build 打开所有数据库。任意一个失败时关闭已经打开的连接。
func (b *Builder) Build(cfg config.Configuration, logger logging.Logger) (*DatabaseFactory, error) {
	if b.errors != nil {
		return nil, fmt.Errorf("database configuration errors: %w", b.errors)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	factory := NewDatabaseFactory()
	fail := func(err error) (*DatabaseFactory, error) {
		return nil, multierr.Append(err, factory.Close())
	}

	for _, e := range b.entries {
		opts := NewDefaultOptions(e.name, e.dialector)

		if e.section != "" && cfg != nil && cfg.Exists(e.section) {
			var section databaseSection
			if err := cfg.Bind(e.section, &section); err != nil {
				return fail(fmt.Errorf("database '%s': %w", e.name, err))
			}
			if err := section.apply(opts); err != nil {
				return fail(fmt.Errorf("database '%s': %w", e.name, err))
			}
		}
		if e.configure != nil {
			e.configure(opts)
		}

		if err := opts.Validate(); err != nil {
			return fail(fmt.Errorf("invalid configuration for '%s': %w", e.name, err))
		}
		if err := factory.Register(*opts); err != nil {
			return fail(err)
		}

		logger.Info("database registered",
			logging.F("name", opts.Name),
			logging.F("dialector", opts.Dialector.Name()))
	}
	return factory, nil
}
