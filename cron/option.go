package cron

import (
	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

// ServiceToken 应用注入器中 *Service 的令牌
var ServiceToken = di.TypeOf[*Service]()

// BuilderOption 用于配置 Cron Builder
type BuilderOption func(*Builder)

// WithSeconds 启用秒级精度
func WithSeconds() BuilderOption {
	return func(b *Builder) {
		b.WithSeconds()
	}
}

// WithLocation 设置时区
func WithLocation(location string) BuilderOption {
	return func(b *Builder) {
		b.WithLocation(location)
	}
}

// EnableCronLogger 启用 cron 库的内部调度日志
func EnableCronLogger() BuilderOption {
	return func(b *Builder) {
		b.EnableCronLogger()
	}
}

// AddJob 添加任务，参见 Builder.AddJob
func AddJob(spec, name string, handler any, deps ...any) BuilderOption {
	return func(b *Builder) {
		b.AddJob(spec, name, handler, deps...)
	}
}

// New 启用 Cron 能力。可以多次调用，任务累加到同一个调度器。
// 调度器在 Bootstrap 结束时创建并作为托管服务运行。
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := core.GetFeature[*Builder](rt)
		first := builder == nil
		if first {
			builder = NewBuilder()
			rt.Features.Set(builder)
		}
		for _, opt := range opts {
			opt(builder)
		}
		if err := builder.Err(); err != nil {
			return err
		}
		if !first {
			return nil
		}

		return core.WithHostedService(di.FactoryProvider{
			Token: ServiceToken,
			UseFactory: func(inj *di.Injector, factory logging.LoggerFactory) (*Service, error) {
				return builder.build(inj, factory.CreateLogger("cron"))
			},
			Deps: []any{di.InjectorToken, di.TypeOf[logging.LoggerFactory]()},
		})(rt)
	}
}
