package mongodb

import (
	"context"

	"github.com/gocrud/mgo"
	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// DefaultClient 默认客户端名称
const DefaultClient = "default"

// FactoryToken 应用注入器中 *MongoFactory 的令牌
var FactoryToken = di.TypeOf[*MongoFactory]()

// Client 返回命名客户端的令牌
func Client(name string) di.NamedKey {
	return di.Named[*mongo.Client](name)
}

// Mgo 返回命名 mgo 客户端的令牌，与 Client(name) 共享同一组连接配置
func Mgo(name string) di.NamedKey {
	return di.Named[*mgo.Client](name)
}

// Database 返回命名客户端默认数据库的令牌，客户端必须配置了 Database
func Database(name string) di.NamedKey {
	return di.Named[*mongo.Database](name)
}

// BuilderOption 用于配置 MongoDB Builder
type BuilderOption func(*Builder)

// WithClient 添加 MongoDB 客户端配置
func WithClient(name string, uri string, opts ...func(*MongoOptions)) BuilderOption {
	return func(b *Builder) {
		b.Add(name, uri, chain(opts))
	}
}

// WithClientFromConfig 添加从配置节读取的客户端
func WithClientFromConfig(name, section string, opts ...func(*MongoOptions)) BuilderOption {
	return func(b *Builder) {
		b.AddFromConfig(name, section, chain(opts))
	}
}

// WithPingOnStart 应用启动时检查连接
func WithPingOnStart() BuilderOption {
	return func(b *Builder) {
		b.PingOnStart()
	}
}

func chain(opts []func(*MongoOptions)) func(*MongoOptions) {
	if len(opts) == 0 {
		return nil
	}
	return func(o *MongoOptions) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

// New 启用 MongoDB 能力。
// 每个客户端提供 Client(name)、Mgo(name) 和 Database(name)；
// "default" 客户端同时以 *mongo.Client 和 *mgo.Client 提供。
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
				UseFactory: func(cfg config.Configuration, logger logging.Logger, lc *core.LifecycleEvents) (*MongoFactory, error) {
					factory, err := builder.Build(cfg, logger.WithCategory("mongodb"))
					if err != nil {
						return nil, err
					}
					lc.OnStop(func(ctx context.Context) error {
						logger.Info("closing mongo clients")
						return factory.Close(ctx)
					})
					return factory, nil
				},
				Deps: []any{config.ConfigurationToken, di.TypeOf[logging.Logger](), di.TypeOf[*core.LifecycleEvents]()},
			})
			rt.Lifecycle.OnStart(func(ctx context.Context) error {
				if !builder.pingOnStart {
					return nil
				}
				factory, err := di.Get[*MongoFactory](rt.AppInjector(), FactoryToken)
				if err != nil {
					return err
				}
				return factory.Ping(ctx)
			})
		}

		for _, e := range builder.entries {
			if _, done := builder.registered[e.name]; done {
				continue
			}
			builder.registered[e.name] = struct{}{}

			name := e.name
			rt.Provide(
				di.FactoryProvider{
					Token: Client(name),
					UseFactory: func(factory *MongoFactory) (*mongo.Client, error) {
						return factory.Get(name)
					},
					Deps: []any{FactoryToken},
				},
				di.FactoryProvider{
					Token: Mgo(name),
					UseFactory: func(factory *MongoFactory) (*mgo.Client, error) {
						return factory.Mgo(name)
					},
					Deps: []any{FactoryToken},
				},
				di.FactoryProvider{
					Token: Database(name),
					UseFactory: func(factory *MongoFactory) (*mongo.Database, error) {
						return factory.Database(name)
					},
					Deps: []any{FactoryToken},
				},
			)
			if name == DefaultClient {
				rt.Provide(
					di.TokenProvider{Token: di.TypeOf[*mongo.Client](), UseToken: Client(DefaultClient)},
					di.TokenProvider{Token: di.TypeOf[*mgo.Client](), UseToken: Mgo(DefaultClient)},
				)
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
