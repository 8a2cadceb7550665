package etcd

import (
	"context"
	"fmt"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultClient 默认客户端名称
const DefaultClient = "default"

// FactoryToken 应用注入器中 *EtcdClientFactory 的令牌
var FactoryToken = di.TypeOf[*EtcdClientFactory]()

// Client 返回命名客户端的令牌
func Client(name string) di.NamedKey {
	return di.Named[*clientv3.Client](name)
}

// BuilderOption 用于配置 Etcd Builder
type BuilderOption func(*Builder)

// WithClient 添加 Etcd 客户端配置
func WithClient(name string, opts ...func(*EtcdClientOptions)) BuilderOption {
	return func(b *Builder) {
		b.AddClient(name, chain(opts))
	}
}

// WithClientFromConfig 添加从配置节读取的客户端
func WithClientFromConfig(name, section string, opts ...func(*EtcdClientOptions)) BuilderOption {
	return func(b *Builder) {
		b.AddClientFromConfig(name, section, chain(opts))
	}
}

// WithConfigWatch 监听 client 的 prefix，变更时重新加载应用配置。
// 通常与 config.ConfigurationBuilder.AddEtcd 使用同一个前缀。
func WithConfigWatch(client, prefix string) BuilderOption {
	return func(b *Builder) {
		b.WatchConfig(client, prefix)
	}
}

func chain(opts []func(*EtcdClientOptions)) func(*EtcdClientOptions) {
	if len(opts) == 0 {
		return nil
	}
	return func(o *EtcdClientOptions) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

// New 启用 Etcd 能力
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder, first := sharedBuilder(rt)
		watches := len(builder.watches)
		for _, opt := range opts {
			opt(builder)
		}
		if err := builder.Err(); err != nil {
			return err
		}

		if first {
			rt.Provide(di.FactoryProvider{
				Token: FactoryToken,
				UseFactory: func(cfg config.Configuration, logger logging.Logger, lc *core.LifecycleEvents) (*EtcdClientFactory, error) {
					factory, err := builder.Build(cfg, logger.WithCategory("etcd"))
					if err != nil {
						return nil, err
					}
					lc.OnStop(func(context.Context) error {
						logger.Info("closing etcd clients")
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
				Token: Client(name),
				UseFactory: func(factory *EtcdClientFactory) (*clientv3.Client, error) {
					return factory.Get(name)
				},
				Deps: []any{FactoryToken},
			})
			if name == DefaultClient {
				rt.Provide(di.TokenProvider{Token: di.TypeOf[*clientv3.Client](), UseToken: Client(DefaultClient)})
			}
		}

		for _, w := range builder.watches[watches:] {
			if err := core.WithHostedService(watcherProvider(w))(rt); err != nil {
				return err
			}
		}
		return nil
	}
}

func watcherProvider(w watchEntry) di.FactoryProvider {
	return di.FactoryProvider{
		Token: di.NewToken[*ConfigWatcher](fmt.Sprintf("etcd watcher %s%s", w.client, w.prefix)),
		UseFactory: func(client *clientv3.Client, cfg config.Configuration, factory logging.LoggerFactory) (*ConfigWatcher, error) {
			reloadable, ok := cfg.(config.Reloadable)
			if !ok {
				return nil, fmt.Errorf("etcd watch: configuration is not reloadable")
			}
			return NewConfigWatcher(client, w.prefix, reloadable, factory.CreateLogger("etcd.watch")), nil
		},
		Deps: []any{Client(w.client), config.ConfigurationToken, di.TypeOf[logging.LoggerFactory]()},
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
