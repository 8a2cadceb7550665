package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/hosting"
	"github.com/gocrud/modkit/logging"
	"go.uber.org/multierr"
)

// RuntimeToken 应用注入器中 *Runtime 的令牌
var RuntimeToken = di.TypeOf[*Runtime]()

// Runtime 是框架的状态容器
//
// Option 在启动前修改 Runtime；Bootstrap 构建注入器树并执行扩展的三个阶段；
// Start / Stop 管理生命周期钩子和托管服务。
type Runtime struct {
	// Features 存放构建时特性（web 路由表、redis 客户端配置等）
	Features FeatureCollection

	// Lifecycle 生命周期管理
	Lifecycle *LifecycleEvents

	// ErrorHandler 记录运行时产生的严重错误，默认写入日志
	ErrorHandler func(err error)

	registry        *di.KeyRegistry
	environment     Environment
	shutdownTimeout time.Duration

	configBuilder  *config.ConfigurationBuilder
	loggingBuilder *logging.LoggingBuilder
	configuration  config.Configuration
	loggerFactory  logging.LoggerFactory
	logger         logging.Logger

	providers []any
	modules   []*Module
	hosted    []func(rt *Runtime) (hosting.HostedService, error)
	services  *hosting.HostedServiceManager

	appInjector     *di.Injector
	moduleInjectors map[string]*di.Injector
	sortedModules   []*Module
	bootstrapped    bool

	runCancel    context.CancelFunc
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewRuntime 创建一个新的运行时实例
func NewRuntime() *Runtime {
	return &Runtime{
		Lifecycle:       NewLifecycle(),
		registry:        di.NewKeyRegistry(),
		environment:     NewEnvironment("development"),
		shutdownTimeout: 30 * time.Second,
		configBuilder:   config.NewConfigurationBuilder(),
		loggingBuilder:  logging.NewLoggingBuilder(),
		moduleInjectors: make(map[string]*di.Injector),
		shutdownCh:      make(chan struct{}),
	}
}

// Apply 应用多个 Option
func (rt *Runtime) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(rt); err != nil {
			return err
		}
	}
	return nil
}

// Provide 追加应用级提供者，必须在 Bootstrap 之前调用
func (rt *Runtime) Provide(providers ...any) {
	rt.providers = append(rt.providers, providers...)
}

// AddHostedService 添加托管服务。扩展可以在 stage2 / stage3 中调用（例如 web 服务器）。
func (rt *Runtime) AddHostedService(svc HostedService) {
	if rt.services != nil {
		rt.services.Add(svc)
		return
	}
	rt.hosted = append(rt.hosted, func(*Runtime) (hosting.HostedService, error) { return svc, nil })
}

// Registry 返回所有注入器共享的令牌注册表
func (rt *Runtime) Registry() *di.KeyRegistry { return rt.registry }

// Environment 返回运行环境
func (rt *Runtime) Environment() Environment { return rt.environment }

// ShutdownTimeout 返回优雅关闭的超时时间
func (rt *Runtime) ShutdownTimeout() time.Duration { return rt.shutdownTimeout }

// Configuration 返回配置，Bootstrap 之前为 nil
func (rt *Runtime) Configuration() config.Configuration { return rt.configuration }

// Logger 返回运行时日志记录器，Bootstrap 之前为 nil
func (rt *Runtime) Logger() logging.Logger { return rt.logger }

// LoggerFactory 返回日志工厂，Bootstrap 之前为 nil
func (rt *Runtime) LoggerFactory() logging.LoggerFactory { return rt.loggerFactory }

// AppInjector 返回应用注入器，Bootstrap 之前为 nil
func (rt *Runtime) AppInjector() *di.Injector { return rt.appInjector }

// ModuleInjector 返回模块注入器
func (rt *Runtime) ModuleInjector(name string) (*di.Injector, bool) {
	inj, ok := rt.moduleInjectors[name]
	return inj, ok
}

// Modules 返回按导入关系排序后的模块（Bootstrap 之后有效）
func (rt *Runtime) Modules() []*Module {
	return append([]*Module(nil), rt.sortedModules...)
}

// Shutdown 请求应用退出，可以多次调用
func (rt *Runtime) Shutdown() {
	rt.shutdownOnce.Do(func() { close(rt.shutdownCh) })
}

// Done 返回一个通道，当应用需要退出时该通道会关闭
func (rt *Runtime) Done() <-chan struct{} {
	return rt.shutdownCh
}

// Start 执行启动钩子并在后台启动所有托管服务。
// 托管服务返回错误时记录错误并请求退出。
func (rt *Runtime) Start(ctx context.Context) error {
	if !rt.bootstrapped {
		return errors.New("core: Start called before Bootstrap")
	}
	if err := rt.Lifecycle.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt.runCancel = cancel

	errCh := rt.services.StartAll(runCtx)
	go func() {
		select {
		case err := <-errCh:
			rt.ErrorHandler(err)
			rt.Shutdown()
		case <-runCtx.Done():
		}
	}()

	rt.logger.Info("application started", logging.F("environment", rt.environment.Name()))
	return nil
}

// Stop 取消托管服务的上下文，倒序停止托管服务，然后倒序执行停止钩子
func (rt *Runtime) Stop(ctx context.Context) error {
	if !rt.bootstrapped {
		return nil
	}
	if rt.runCancel != nil {
		rt.runCancel()
	}

	var err error
	if rt.services != nil {
		err = rt.services.StopAll(ctx)
		rt.services.Wait()
	}
	err = multierr.Append(err, rt.Lifecycle.Stop(ctx))

	if err != nil {
		rt.logger.Error("application stopped with errors", logging.F("error", err))
		return fmt.Errorf("core: stop: %w", err)
	}
	rt.logger.Info("application stopped")
	return nil
}
