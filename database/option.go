package database

import (
	"context"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
	"gorm.io/gorm"
)

// DefaultDatabase 默认数据库名称，同时以 *gorm.DB 类型令牌提供
const DefaultDatabase = "default"

// FactoryToken 应用注入器中 *DatabaseFactory 的令牌
var FactoryToken = di.TypeOf[*DatabaseFactory]()

// DB 返回命名数据库的令牌
func DB(name string) di.NamedKey {
	return di.Named[*gorm.DB](name)
}

// BuilderOption 用于配置 Database Builder
type BuilderOption func(*Builder)

// WithDatabase 添加数据库配置
func WithDatabase(name string, dialector gorm.Dialector, opts ...func(*DatabaseOptions)) BuilderOption {
	return func(b *Builder) {
		b.Add(name, dialector, chain(opts))
	}
}

// WithDatabaseFromConfig 添加从配置节读取的数据库
func WithDatabaseFromConfig(name, section string, opts ...func(*DatabaseOptions)) BuilderOption {
	return func(b *Builder) {
		b.AddFromConfig(name, section, chain(opts))
	}
}

func chain(opts []func(*DatabaseOptions)) func(*DatabaseOptions) {
	if len(opts) == 0 {
		return nil
	}
	return func(o *DatabaseOptions) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

// New 启用数据库能力。连接在 *DatabaseFactory 首次解析时打开，应用停止时关闭。
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder, first := sharedBuilder(rt)
		for _, opt := range opts {
			opt(builder)
		}
		if err := builder.Err(); err != nil {
			return err
		}

		if first {
			rt.Provide(di.FactoryProvider{
				Token: FactoryToken,
				UseFactory: func(cfg config.Configuration, logger logging.Logger, lc *core.LifecycleEvents) (*DatabaseFactory, error) {
					factory, err := builder.Build(cfg, logger.WithCategory("database"))
					if err != nil {
						return nil, err
					}
					lc.OnStop(func(context.Context) error {
						logger.Info("closing database connections")
						return factory.Close()
					})
					return factory, nil
				},
				Deps: []any{config.ConfigurationToken, di.TypeOf[logging.Logger](), di.TypeOf[*core.LifecycleEvents]()},
			})
		}

		for _, e := range builder.entries {
			if _, done := builder.registered[e.name]; done {
				continue
			}
			builder.registered[e.name] = struct{}{}

			name := e.name
			rt.Provide(di.FactoryProvider{
				Token: DB(name),
				UseFactory: func(factory *DatabaseFactory) (*gorm.DB, error) {
					return factory.Get(name)
				},
				Deps: []any{FactoryToken},
			})
			if name == DefaultDatabase {
				rt.Provide(di.TokenProvider{Token: di.TypeOf[*gorm.DB](), UseToken: DB(DefaultDatabase)})
			}
		}
		return nil
	}
}

func sharedBuilder(rt *core.Runtime) (*Builder, bool) {
	if b := core.GetFeature[*Builder](rt); b != nil {
		return b, false
	}
	b := NewBuilder()
	rt.Features.Set(b)
	return b, true
}
