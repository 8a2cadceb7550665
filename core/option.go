package core

import (
	"context"
	"fmt"
	"time"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/hosting"
	"github.com/gocrud/modkit/logging"
)

// Option 定义了修改 Runtime 状态的函数签名
// 这是框架唯一的扩展点，功能模块（web、redis 等）都以 Option 的形式接入
type Option func(rt *Runtime) error

// WithModules 注册模块。被导入的模块会自动加入，不需要重复注册。
func WithModules(modules ...*Module) Option {
	return func(rt *Runtime) error {
		rt.modules = append(rt.modules, modules...)
		return nil
	}
}

// WithProviders 注册应用级提供者
func WithProviders(providers ...any) Option {
	return func(rt *Runtime) error {
		rt.Provide(providers...)
		return nil
	}
}

// WithConfiguration 配置配置系统。可以多次调用，配置源按调用顺序叠加。
//
// 示例：
//
//	core.WithConfiguration(func(b *config.ConfigurationBuilder) {
//		b.AddYamlFile("config.yaml", true).AddEnvironmentVariables("APP_")
//	})
func WithConfiguration(configure func(*config.ConfigurationBuilder)) Option {
	return func(rt *Runtime) error {
		if configure != nil {
			configure(rt.configBuilder)
		}
		return nil
	}
}

// WithLogging 配置日志系统。没有添加任何日志提供者时使用控制台输出。
func WithLogging(configure func(*logging.LoggingBuilder)) Option {
	return func(rt *Runtime) error {
		if configure != nil {
			configure(rt.loggingBuilder)
		}
		return nil
	}
}

// WithLoggerFactory 直接使用给定的日志工厂，忽略 WithLogging
func WithLoggerFactory(factory logging.LoggerFactory) Option {
	return func(rt *Runtime) error {
		if factory == nil {
			return fmt.Errorf("core: WithLoggerFactory: nil factory")
		}
		rt.loggerFactory = factory
		return nil
	}
}

// WithEnvironment 设置环境名称（development、staging、production）
func WithEnvironment(name string) Option {
	return func(rt *Runtime) error {
		rt.environment = NewEnvironment(name)
		return nil
	}
}

// WithShutdownTimeout 设置优雅关闭的超时时间
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(rt *Runtime) error {
		if timeout <= 0 {
			return fmt.Errorf("core: shutdown timeout must be positive, got %v", timeout)
		}
		rt.shutdownTimeout = timeout
		return nil
	}
}

// WithHostedService 注册一个托管服务提供者（构造函数或 di 提供者结构体）。
// 提供者进入应用注入器，实例在 Bootstrap 结束时解析，必须实现 HostedService。
func WithHostedService(provider any) Option {
	return func(rt *Runtime) error {
		token := di.ProviderToken(provider)
		if token == nil {
			return fmt.Errorf("core: WithHostedService: invalid provider %T", provider)
		}
		rt.Provide(provider)

		rt.hosted = append(rt.hosted, func(rt *Runtime) (hosting.HostedService, error) {
			val, err := rt.appInjector.Get(token)
			if err != nil {
				return nil, err
			}
			svc, ok := val.(hosting.HostedService)
			if !ok {
				return nil, fmt.Errorf("core: %s does not implement HostedService", di.TokenName(token))
			}
			return svc, nil
		})
		return nil
	}
}

// WorkerFunc 定义简单的后台任务函数，通过 ctx.Done() 判断退出
type WorkerFunc func(ctx context.Context) error

// WithWorker 将一个阻塞的函数注册为托管服务
func WithWorker(fn WorkerFunc) Option {
	return func(rt *Runtime) error {
		rt.AddHostedService(hosting.Func(fn))
		return nil
	}
}

// WithTimedTask 按固定间隔执行任务，任务失败只记录日志
func WithTimedTask(name string, interval time.Duration, task func(ctx context.Context) error) Option {
	return func(rt *Runtime) error {
		if interval <= 0 {
			return fmt.Errorf("core: timed task %s: interval must be positive", name)
		}
		rt.hosted = append(rt.hosted, func(rt *Runtime) (hosting.HostedService, error) {
			return hosting.NewTimedHostedService(name, interval, task, rt.logger), nil
		})
		return nil
	}
}
