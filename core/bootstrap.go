package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/extension"
	"github.com/gocrud/modkit/hosting"
	"github.com/gocrud/modkit/logging"
)

// Bootstrap 构建注入器树并执行扩展。
//
// 顺序：
//  1. 构建配置和日志；
//  2. 用核心服务、Provide 注册的提供者和所有模块的 ProvidersPerApp 创建应用注入器；
//  3. 按导入顺序为每个模块创建模块注入器，并把被导入模块的 Exports 复制进来；
//  4. 所有模块完成 stage1 之后才开始 stage2，所有模块完成 stage2 之后才开始 stage3。
//
// 最后一个模块的扩展在 stage1 中收到 isLastModule = true。
func (rt *Runtime) Bootstrap(ctx context.Context) error {
	if rt.bootstrapped {
		return errors.New("core: runtime already bootstrapped")
	}
	if err := rt.buildAmbient(); err != nil {
		return err
	}

	modules, err := sortModules(rt.modules)
	if err != nil {
		return err
	}
	rt.sortedModules = modules

	if err := rt.createAppInjector(modules); err != nil {
		return err
	}

	managers := make([]*extension.Manager, len(modules))
	for i, m := range modules {
		inj, err := rt.createModuleInjector(m, i == len(modules)-1)
		if err != nil {
			return err
		}
		rt.moduleInjectors[m.Name] = inj

		mgr, err := di.Get[*extension.Manager](inj, extension.ManagerToken, di.VisibilitySelf)
		if err != nil {
			return fmt.Errorf("core: module %s: %w", m.Name, err)
		}
		managers[i] = mgr
	}

	// 组的顺序约束在任何扩展执行之前检查
	for i, mgr := range managers {
		if _, err := mgr.Groups(); err != nil {
			return fmt.Errorf("core: module %s: %w", modules[i].Name, err)
		}
	}

	for i, mgr := range managers {
		rt.logger.Debug("running stage1", logging.F("module", modules[i].Name))
		if _, err := mgr.RunStage1(ctx); err != nil {
			return fmt.Errorf("core: module %s: %w", modules[i].Name, err)
		}
	}
	for i, mgr := range managers {
		rt.logger.Debug("running stage2", logging.F("module", modules[i].Name))
		if err := mgr.Stage2(ctx, rt.moduleInjectors[modules[i].Name]); err != nil {
			return fmt.Errorf("core: module %s: %w", modules[i].Name, err)
		}
	}
	for i, mgr := range managers {
		rt.logger.Debug("running stage3", logging.F("module", modules[i].Name))
		if err := mgr.Stage3(ctx); err != nil {
			return fmt.Errorf("core: module %s: %w", modules[i].Name, err)
		}
	}

	rt.services = hosting.NewHostedServiceManager(rt.logger.WithCategory("hosting"))
	for _, build := range rt.hosted {
		svc, err := build(rt)
		if err != nil {
			return fmt.Errorf("core: hosted service: %w", err)
		}
		rt.services.Add(svc)
	}
	rt.hosted = nil

	rt.bootstrapped = true
	rt.logger.Info("application bootstrapped",
		logging.F("modules", len(modules)),
		logging.F("hostedServices", rt.services.Len()))
	return nil
}

func (rt *Runtime) buildAmbient() error {
	cfg, err := rt.configBuilder.BuildReloadable()
	if err != nil {
		return fmt.Errorf("core: configuration: %w", err)
	}
	rt.configuration = cfg

	if rt.loggerFactory == nil {
		if len(rt.loggingBuilder.Providers()) == 0 {
			rt.loggingBuilder.AddConsole()
		}
		rt.loggerFactory = rt.loggingBuilder.Build()
	}
	// 配置中的 logging:level 覆盖代码设置的最小级别
	if lvl := cfg.Get("logging:level"); lvl != "" {
		level, err := logging.ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("core: logging:level: %w", err)
		}
		rt.loggerFactory.SetMinimumLevel(level)
	}
	rt.logger = rt.loggerFactory.CreateLogger("Application")

	cfg.OnReload(func() {
		rt.logger.Info("configuration reloaded")
	})

	if rt.ErrorHandler == nil {
		rt.ErrorHandler = func(err error) {
			rt.logger.Error("runtime error", logging.F("error", err))
		}
	}
	return nil
}

func (rt *Runtime) createAppInjector(modules []*Module) error {
	providers := []any{
		di.ValueProvider{Token: RuntimeToken, UseValue: rt},
		di.ValueProvider{Token: di.TypeOf[*LifecycleEvents](), UseValue: rt.Lifecycle},
		di.ValueProvider{Token: di.TypeOf[Environment](), UseValue: rt.environment},
		di.ValueProvider{Token: config.ConfigurationToken, UseValue: rt.configuration},
		di.ValueProvider{Token: di.TypeOf[logging.LoggerFactory](), UseValue: rt.loggerFactory},
		di.ValueProvider{Token: di.TypeOf[logging.Logger](), UseValue: rt.logger},
		rt.providers,
	}
	for _, m := range modules {
		providers = append(providers, m.ProvidersPerApp)
	}

	inj, err := di.ResolveAndCreate(rt.registry, providers, "App")
	if err != nil {
		return fmt.Errorf("core: app providers: %w", err)
	}
	rt.appInjector = inj
	return nil
}

func (rt *Runtime) createModuleInjector(m *Module, last bool) (*di.Injector, error) {
	extProviders, err := extension.Providers(rt.registry, m.Extensions...)
	if err != nil {
		return nil, fmt.Errorf("core: module %s: %w", m.Name, err)
	}

	providers := []any{
		di.ValueProvider{Token: ModuleToken, UseValue: m},
		m.ProvidersPerMod,
		extProviders,
		extension.ManagerProvider(
			extension.WithLastModule(last),
			extension.WithLogger(rt.loggerFactory.CreateLogger("extension."+m.Name)),
		),
	}

	inj, err := rt.appInjector.ResolveAndCreateChild(providers, m.Name)
	if err != nil {
		return nil, fmt.Errorf("core: module %s: %w", m.Name, err)
	}

	for _, imp := range m.Imports {
		if err := rt.importExports(inj, m, imp); err != nil {
			return nil, err
		}
	}
	return inj, nil
}

// importExports 把 imp 的 Exports 复制到 inj。导出的令牌先在导出模块中实例化，
// 导入方和导出方共享同一个实例；导入方自己声明的令牌优先。
func (rt *Runtime) importExports(inj *di.Injector, m, imp *Module) error {
	src := rt.moduleInjectors[imp.Name]

	tokens := make([]any, 0, len(imp.Exports))
	for _, token := range imp.Exports {
		if inj.Has(token, di.VisibilitySelf) {
			continue
		}
		if !src.Has(token, di.VisibilitySelf) {
			return fmt.Errorf("core: module %s exports %s but does not provide it", imp.Name, di.TokenName(token))
		}
		if _, err := src.Get(token, di.VisibilitySelf); err != nil {
			return fmt.Errorf("core: module %s: export %s: %w", imp.Name, di.TokenName(token), err)
		}
		tokens = append(tokens, token)
	}

	if err := src.Fill(inj, tokens...); err != nil {
		return fmt.Errorf("core: module %s: import %s: %w", m.Name, imp.Name, err)
	}
	return nil
}
