package web

import (
	"context"
	"fmt"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/extension"
	"github.com/gocrud/modkit/logging"
)

// RoutesGroup 路由扩展组：stage1 解析路由，stage2 创建路由注入器并检查依赖
var RoutesGroup = di.NewToken[any]("ROUTES_EXTENSIONS")

// PreRouterGroup 预路由扩展组：等待 RoutesGroup，stage3 把路由挂载到服务器
var PreRouterGroup = di.NewToken[any]("PRE_ROUTER_EXTENSIONS")

var preRouterToken = di.NewToken[*preRouterExtension]("web pre-router")

// Controllers 返回模块的扩展注册
//
// 示例：
//
//	&core.Module{
//		Name:       "users",
//		Extensions: web.Controllers(usersController),
//	}
func Controllers(controllers ...Controller) []extension.Registration {
	return []extension.Registration{
		{
			Extension: di.FactoryProvider{
				Token: di.NewToken[*routesExtension]("web routes"),
				UseFactory: func(inj *di.Injector, m *core.Module) *routesExtension {
					return &routesExtension{registry: inj.Registry(), module: m, controllers: controllers}
				},
				Deps: []any{di.InjectorToken, core.ModuleToken},
			},
			Group: RoutesGroup,
		},
		{
			Extension: di.FactoryProvider{
				Token: preRouterToken,
				UseFactory: func(mgr *extension.Manager, srv *Server, m *core.Module) *preRouterExtension {
					return &preRouterExtension{manager: mgr, server: srv, module: m.Name}
				},
				Deps: []any{extension.ManagerToken, ServerToken, core.ModuleToken},
			},
			Group:       PreRouterGroup,
			AfterGroups: []any{RoutesGroup},
		},
	}
}

// route 一条路由在启动过程中积累的状态
type route struct {
	info     *RouteInfo
	handler  *di.ResolvedProvider
	guards   []*di.ResolvedProvider
	perRoute []*di.ResolvedProvider
	perReq   []*di.ResolvedProvider
	injector *di.Injector // stage2 之后有效
}

type routesExtension struct {
	registry    *di.KeyRegistry
	module      *core.Module
	controllers []Controller
	routes      []*route
}

func (e *routesExtension) Name() string {
	return "web.Routes(" + e.module.Name + ")"
}

// Stage1 解析处理函数、守卫以及模块的 ProvidersPerRou / ProvidersPerReq
func (e *routesExtension) Stage1(context.Context, bool) (any, error) {
	perReq, err := di.Resolve(e.registry, e.module.ProvidersPerReq)
	if err != nil {
		return nil, fmt.Errorf("providers per request: %w", err)
	}

	for _, ctrl := range e.controllers {
		for _, r := range ctrl.Routes {
			info := &RouteInfo{
				Method:   r.Method,
				Path:     joinPath(ctrl.Prefix, r.Path),
				Module:   e.module.Name,
				Metadata: r.Metadata,
			}
			label := info.Method + " " + info.Path
			if r.Handler == nil {
				return nil, fmt.Errorf("route %s: handler is required", label)
			}

			handler, err := di.Resolve(e.registry, []any{di.FactoryProvider{
				Token:      di.NewToken[any]("handler " + label),
				UseFactory: r.Handler,
				Deps:       r.Deps,
			}})
			if err != nil {
				return nil, fmt.Errorf("route %s: %w", label, err)
			}

			guardProviders := append(append([]any(nil), ctrl.Guards...), r.Guards...)
			guards := make([]*di.ResolvedProvider, 0, len(guardProviders))
			for _, g := range guardProviders {
				rps, err := di.Resolve(e.registry, []any{g})
				if err != nil {
					return nil, fmt.Errorf("route %s guard: %w", label, err)
				}
				guards = append(guards, rps[0])
			}

			perRoute, err := di.Resolve(e.registry, []any{
				e.module.ProvidersPerRou,
				di.ValueProvider{Token: RouteInfoToken, UseValue: info},
			})
			if err != nil {
				return nil, fmt.Errorf("route %s: providers per route: %w", label, err)
			}

			e.routes = append(e.routes, &route{
				info:     info,
				handler:  handler[0],
				guards:   guards,
				perRoute: perRoute,
				perReq:   perReq,
			})
		}
	}
	return e.routes, nil
}

// Stage2 为每条路由创建路由注入器，并在一个探测用的请求注入器上检查守卫和处理函数的依赖
func (e *routesExtension) Stage2(_ context.Context, injectorPerModule *di.Injector) error {
	for _, r := range e.routes {
		r.injector = injectorPerModule.CreateChildFromResolved(r.perRoute, "Rou")
		reqInj := r.injector.CreateChildFromResolved(r.perReq, "Req")

		for _, g := range r.guards {
			if err := di.CheckResolved(reqInj, g, ContextToken); err != nil {
				return fmt.Errorf("route %s %s guard: %w", r.info.Method, r.info.Path, err)
			}
		}
		if err := di.CheckResolved(reqInj, r.handler, ContextToken); err != nil {
			return fmt.Errorf("route %s %s: %w", r.info.Method, r.info.Path, err)
		}
	}
	return nil
}

type preRouterExtension struct {
	manager *extension.Manager
	server  *Server
	module  string
	routes  []*route
}

func (e *preRouterExtension) Name() string {
	return "web.PreRouter(" + e.module + ")"
}

// Stage1 等待本模块所有路由扩展完成
func (e *preRouterExtension) Stage1(ctx context.Context, _ bool) (any, error) {
	res, err := e.manager.Stage1(ctx, RoutesGroup)
	if err != nil {
		return nil, err
	}
	for _, payload := range res.Payloads() {
		routes, ok := payload.([]*route)
		if !ok {
			continue
		}
		e.routes = append(e.routes, routes...)
	}
	return len(e.routes), nil
}

// Stage3 挂载路由
func (e *preRouterExtension) Stage3(context.Context) error {
	for _, r := range e.routes {
		if err := e.server.mount(r); err != nil {
			return err
		}
	}
	e.server.logger.Debug("routes mounted",
		logging.F("module", e.module),
		logging.F("routes", len(e.routes)))
	return nil
}
