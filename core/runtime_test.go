package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/extension"
	"github.com/gocrud/modkit/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type Repo struct{ DSN string }

type OrderService struct{ Repo *Repo }

func NewOrderService(r *Repo) *OrderService { return &OrderService{Repo: r} }

var STAGES = di.NewToken[any]("STAGES")

// journal 记录扩展各阶段的执行顺序
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

type stageExt struct {
	module string
	j      *journal
	last   bool
	inj    *di.Injector
}

func (e *stageExt) Name() string { return "stages(" + e.module + ")" }

func (e *stageExt) Stage1(_ context.Context, isLastModule bool) (any, error) {
	e.last = isLastModule
	e.j.add("stage1:" + e.module)
	return e.module, nil
}

func (e *stageExt) Stage2(_ context.Context, inj *di.Injector) error {
	e.inj = inj
	e.j.add("stage2:" + e.module)
	return nil
}

func (e *stageExt) Stage3(context.Context) error {
	e.j.add("stage3:" + e.module)
	return nil
}

func quiet() core.Option {
	return core.WithLoggerFactory(logging.NewLoggingBuilder().Build())
}

func TestBootstrap_ModulesAndBarriers(t *testing.T) {
	j := &journal{}
	storageExt := &stageExt{module: "storage", j: j}
	ordersExt := &stageExt{module: "orders", j: j}

	storage := &core.Module{
		Name: "storage",
		ProvidersPerMod: []any{
			di.FactoryProvider{
				Token: di.TypeOf[*Repo](),
				UseFactory: func(cfg config.Configuration) *Repo {
					return &Repo{DSN: cfg.Get("database:dsn")}
				},
				Deps: []any{config.ConfigurationToken},
			},
		},
		Exports:    []any{di.TypeOf[*Repo]()},
		Extensions: []extension.Registration{{Extension: storageExt, Group: STAGES}},
	}
	orders := &core.Module{
		Name:            "orders",
		Imports:         []*core.Module{storage},
		ProvidersPerMod: []any{NewOrderService},
		Extensions:      []extension.Registration{{Extension: ordersExt, Group: STAGES}},
	}

	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(
		quiet(),
		core.WithConfiguration(func(b *config.ConfigurationBuilder) {
			b.AddInMemory(map[string]any{"database": map[string]any{"dsn": "file::memory:"}})
		}),
		core.WithModules(orders),
	))
	require.NoError(t, rt.Bootstrap(context.Background()))

	assert.Equal(t, []string{
		"stage1:storage", "stage1:orders",
		"stage2:storage", "stage2:orders",
		"stage3:storage", "stage3:orders",
	}, j.entries)
	assert.False(t, storageExt.last)
	assert.True(t, ordersExt.last)

	ordersInj, ok := rt.ModuleInjector("orders")
	require.True(t, ok)
	assert.Same(t, ordersInj, ordersExt.inj)
	assert.Same(t, rt.AppInjector(), ordersInj.Parent())

	svc, err := di.Inject[*OrderService](ordersInj)
	require.NoError(t, err)
	assert.Equal(t, "file::memory:", svc.Repo.DSN)

	storageInj, _ := rt.ModuleInjector("storage")
	repo, err := di.Inject[*Repo](storageInj)
	require.NoError(t, err)
	assert.Same(t, repo, svc.Repo)

	_, err = di.Inject[*OrderService](storageInj)
	assert.Error(t, err)

	names := make([]string, 0)
	for _, m := range rt.Modules() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"storage", "orders"}, names)

	m, err := di.Get[*core.Module](ordersInj, core.ModuleToken)
	require.NoError(t, err)
	assert.Same(t, orders, m)

	assert.Error(t, rt.Bootstrap(context.Background()))
}

func TestBootstrap_ImportCycle(t *testing.T) {
	a := &core.Module{Name: "a"}
	b := &core.Module{Name: "b", Imports: []*core.Module{a}}
	a.Imports = []*core.Module{b}

	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(quiet(), core.WithModules(a)))
	err := rt.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestBootstrap_DuplicateModuleName(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(quiet(), core.WithModules(&core.Module{Name: "x"}, &core.Module{Name: "x"})))
	err := rt.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate module name "x"`)
}

func TestBootstrap_ExportNotProvided(t *testing.T) {
	lib := &core.Module{Name: "lib", Exports: []any{di.TypeOf[*Repo]()}}
	app := &core.Module{Name: "app", Imports: []*core.Module{lib}}

	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(quiet(), core.WithModules(app)))
	err := rt.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module lib exports *core_test.Repo but does not provide it")
}

type failingExt struct{}

func (failingExt) Stage2(context.Context, *di.Injector) error { return errors.New("no routes") }

func TestBootstrap_ExtensionError(t *testing.T) {
	mod := &core.Module{
		Name:       "web",
		Extensions: []extension.Registration{{Extension: &failingExt{}, Group: STAGES}},
	}
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(quiet(), core.WithModules(mod)))

	err := rt.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "core: module web")
	assert.Contains(t, err.Error(), "no routes")
}

func TestBootstrap_GroupCycleBeforeAnyStage(t *testing.T) {
	j := &journal{}
	first := &core.Module{
		Name:       "first",
		Extensions: []extension.Registration{{Extension: &stageExt{module: "first", j: j}, Group: STAGES}},
	}
	groupA := di.NewToken[any]("A")
	groupB := di.NewToken[any]("B")
	second := &core.Module{
		Name:    "second",
		Imports: []*core.Module{first},
		Extensions: []extension.Registration{
			{Extension: &stageExt{module: "second.a", j: j}, Group: groupA, BeforeGroups: []any{groupB}},
			{Extension: &stageExt{module: "second.b", j: j}, Group: groupB, BeforeGroups: []any{groupA}},
		},
	}
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(quiet(), core.WithModules(first, second)))

	err := rt.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "core: module second")

	var cycle *extension.GroupCycleError
	assert.ErrorAs(t, err, &cycle)
	assert.Empty(t, j.entries)
}

func TestLifecycle_StopReverseAndCombined(t *testing.T) {
	l := core.NewLifecycle()
	var order []int
	for i := 0; i < 3; i++ {
		l.OnStop(func(context.Context) error {
			order = append(order, i)
			if i > 0 {
				return errors.New("close failed")
			}
			return nil
		})
	}

	err := l.Stop(context.Background())
	require.Error(t, err)
	assert.Equal(t, []int{2, 1, 0}, order)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestLifecycle_StartStopsAtFirstError(t *testing.T) {
	l := core.NewLifecycle()
	var calls int
	l.OnStart(func(context.Context) error { calls++; return errors.New("bad") })
	l.OnStart(func(context.Context) error { calls++; return nil })

	assert.Error(t, l.Start(context.Background()))
	assert.Equal(t, 1, calls)
}

type pinger struct {
	started chan struct{}
	stopped bool
}

func newPinger() *pinger { return &pinger{started: make(chan struct{})} }

func (p *pinger) Start(ctx context.Context) error {
	close(p.started)
	<-ctx.Done()
	return ctx.Err()
}

func (p *pinger) Stop(context.Context) error {
	p.stopped = true
	return nil
}

func TestRuntime_StartStop(t *testing.T) {
	var hookOrder []string

	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(
		quiet(),
		core.WithHostedService(newPinger),
		core.WithShutdownTimeout(time.Second),
	))
	rt.Lifecycle.OnStart(func(context.Context) error { hookOrder = append(hookOrder, "start"); return nil })
	rt.Lifecycle.OnStop(func(context.Context) error { hookOrder = append(hookOrder, "stop"); return nil })

	require.Error(t, rt.Start(context.Background()))
	require.NoError(t, rt.Bootstrap(context.Background()))
	require.NoError(t, rt.Start(context.Background()))

	p, err := di.Inject[*pinger](rt.AppInjector())
	require.NoError(t, err)
	select {
	case <-p.started:
	case <-time.After(time.Second):
		t.Fatal("hosted service not started")
	}

	require.NoError(t, rt.Stop(context.Background()))
	assert.True(t, p.stopped)
	assert.Equal(t, []string{"start", "stop"}, hookOrder)
	assert.Equal(t, time.Second, rt.ShutdownTimeout())
}

func TestRuntime_FailingWorkerRequestsShutdown(t *testing.T) {
	var reported error
	rt := core.NewRuntime()
	rt.ErrorHandler = func(err error) { reported = err }
	require.NoError(t, rt.Apply(quiet(), core.WithWorker(func(context.Context) error {
		return errors.New("lost connection")
	})))
	require.NoError(t, rt.Bootstrap(context.Background()))
	require.NoError(t, rt.Start(context.Background()))

	select {
	case <-rt.Done():
	case <-time.After(time.Second):
		t.Fatal("expected shutdown request")
	}
	require.NoError(t, rt.Stop(context.Background()))
	require.Error(t, reported)
	assert.Contains(t, reported.Error(), "lost connection")
}

func TestWithHostedService_NotAService(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(quiet(), core.WithHostedService(func() *Repo { return &Repo{} })))
	err := rt.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not implement HostedService")
}

func TestOptionsValidation(t *testing.T) {
	rt := core.NewRuntime()
	assert.Error(t, rt.Apply(core.WithShutdownTimeout(0)))
	assert.Error(t, rt.Apply(core.WithLoggerFactory(nil)))
	assert.Error(t, rt.Apply(core.WithHostedService(42)))
	assert.Error(t, rt.Apply(core.WithTimedTask("t", 0, nil)))
}

func TestAppLevelServices(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(quiet(), core.WithEnvironment("production")))
	require.NoError(t, rt.Bootstrap(context.Background()))

	env, err := di.Inject[core.Environment](rt.AppInjector())
	require.NoError(t, err)
	assert.True(t, env.IsProduction())

	got, err := di.Get[*core.Runtime](rt.AppInjector(), core.RuntimeToken)
	require.NoError(t, err)
	assert.Same(t, rt, got)

	_, err = di.Inject[logging.Logger](rt.AppInjector())
	assert.NoError(t, err)
}

type routeTable struct{ routes []string }

func TestFeatures(t *testing.T) {
	rt := core.NewRuntime()
	assert.Nil(t, core.GetFeature[*routeTable](rt))

	a := core.GetOrSetFeature(rt, func() *routeTable { return &routeTable{} })
	a.routes = append(a.routes, "/a")
	b := core.GetOrSetFeature(rt, func() *routeTable { return &routeTable{} })
	assert.Same(t, a, b)
	assert.Equal(t, []string{"/a"}, core.GetFeature[*routeTable](rt).routes)
}

func TestLoggingLevelFromConfiguration(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(quiet(), core.WithConfiguration(func(b *config.ConfigurationBuilder) {
		b.AddInMemory(map[string]any{"logging": map[string]any{"level": "verbose"}})
	})))
	err := rt.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown level "verbose"`)
}
