package redis

import (
	"context"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
	"github.com/redis/go-redis/v9"
)

// DefaultClient 默认客户端名称，同时以 *redis.Client 类型令牌提供
const DefaultClient = "default"

// FactoryToken 应用注入器中 *RedisClientFactory 的令牌
var FactoryToken = di.TypeOf[*RedisClientFactory]()

// Client 返回命名客户端的令牌
//
// 示例：
//
//	di.ClassProvider{UseClass: NewCache, Deps: []any{redis.Client("cache")}}
func Client(name string) di.NamedKey {
	return di.Named[*redis.Client](name)
}

// BuilderOption 用于配置 Redis Builder
type BuilderOption func(*Builder)

// WithClient 添加 Redis 客户端配置
func WithClient(name string, opts ...func(*RedisClientOptions)) BuilderOption {
	return func(b *Builder) {
		b.AddClient(name, chain(opts))
	}
}

// WithClientFromConfig 添加从配置节读取的客户端
func WithClientFromConfig(name, section string, opts ...func(*RedisClientOptions)) BuilderOption {
	return func(b *Builder) {
		b.AddClientFromConfig(name, section, chain(opts))
	}
}

// WithPingOnStart 应用启动时检查连接
func WithPingOnStart() BuilderOption {
	return func(b *Builder) {
		b.PingOnStart()
	}
}

func chain(opts []func(*RedisClientOptions)) func(*RedisClientOptions) {
	if len(opts) == 0 {
		return nil
	}
	return func(o *RedisClientOptions) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

// New 启用 Redis 能力。可以多次调用，客户端配置累加到同一个工厂。
//
// 提供者（应用级）：
//   - *RedisClientFactory，首次解析时创建，应用停止时关闭所有客户端；
//   - 每个客户端的命名令牌 Client(name)；
//   - 名为 "default" 的客户端同时以 *redis.Client 提供。
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
				UseFactory: func(cfg config.Configuration, logger logging.Logger, lc *core.LifecycleEvents) (*RedisClientFactory, error) {
					factory, err := builder.Build(cfg, logger.WithCategory("redis"))
					if err != nil {
						return nil, err
					}
					lc.OnStop(func(context.Context) error {
						logger.Info("closing redis clients")
						return factory.Close()
					})
					return factory, nil
				},
				Deps: []any{config.ConfigurationToken, di.TypeOf[logging.Logger](), di.TypeOf[*core.LifecycleEvents]()},
			})

			rt.Lifecycle.OnStart(func(ctx context.Context) error {
				if !builder.pingOnStart {
					return nil
				}
				factory, err := di.Get[*RedisClientFactory](rt.AppInjector(), FactoryToken)
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
			rt.Provide(clientProvider(e.name))
			if e.name == DefaultClient {
				rt.Provide(di.TokenProvider{Token: di.TypeOf[*redis.Client](), UseToken: Client(DefaultClient)})
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

func clientProvider(name string) di.FactoryProvider {
	return di.FactoryProvider{
		Token: Client(name),
		UseFactory: func(factory *RedisClientFactory) (*redis.Client, error) {
			return factory.Get(name)
		},
		Deps: []any{FactoryToken},
	}
}
