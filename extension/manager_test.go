package extension_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/extension"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journal 记录各扩展各阶段的调用
type journal struct {
	calls []string
}

type recordingExt struct {
	name   string
	j      *journal
	last   bool
	mgr    *extension.Manager
	waitOn any
}

func (e *recordingExt) Name() string { return e.name }

func (e *recordingExt) Stage1(ctx context.Context, isLastModule bool) (any, error) {
	e.j.calls = append(e.j.calls, e.name+".stage1")
	e.last = isLastModule
	if e.waitOn != nil {
		if _, err := e.mgr.Stage1(ctx, e.waitOn); err != nil {
			return nil, err
		}
	}
	return e.name + "-payload", nil
}

func (e *recordingExt) Stage2(ctx context.Context, inj *di.Injector) error {
	e.j.calls = append(e.j.calls, e.name+".stage2")
	return nil
}

func (e *recordingExt) Stage3(ctx context.Context) error {
	e.j.calls = append(e.j.calls, e.name+".stage3")
	return nil
}

type stage3Only struct {
	j *journal
}

func (e *stage3Only) Stage3(ctx context.Context) error {
	e.j.calls = append(e.j.calls, "stage3Only.stage3")
	return nil
}

// newModule 创建一个模块注入器，扩展实例通过 ValueProvider 注册
func newModule(t *testing.T, opts []extension.Option, regs ...extension.Registration) (*di.Injector, *extension.Manager) {
	t.Helper()
	reg := di.NewKeyRegistry()

	providers, err := extension.Providers(reg, regs...)
	require.NoError(t, err)
	providers = append(providers, extension.ManagerProvider(opts...))

	inj, err := di.ResolveAndCreate(reg, providers, "Mod")
	require.NoError(t, err)

	mgr, err := di.Get[*extension.Manager](inj, extension.ManagerToken)
	require.NoError(t, err)
	return inj, mgr
}

func TestManager_Stage1Idempotent(t *testing.T) {
	j := &journal{}
	a := &recordingExt{name: "A", j: j}
	b := &recordingExt{name: "B", j: j}

	_, mgr := newModule(t, nil,
		extension.Registration{Extension: a, Group: EXT1},
		extension.Registration{Extension: b, Group: EXT1},
	)

	ctx := context.Background()
	r1, err := mgr.Stage1(ctx, EXT1)
	require.NoError(t, err)
	r2, err := mgr.Stage1(ctx, EXT1)
	require.NoError(t, err)

	assert.Same(t, r1, r2)
	assert.Equal(t, []string{"A.stage1", "B.stage1"}, j.calls)
	assert.Equal(t, []any{"A-payload", "B-payload"}, r1.Payloads())
	assert.Equal(t, "A", r1.Results[0].Name)
	assert.Same(t, a, r1.Results[0].Extension)
}

func TestManager_UnknownGroupIsEmpty(t *testing.T) {
	_, mgr := newModule(t, nil)

	r, err := mgr.Stage1(context.Background(), EXT1)
	require.NoError(t, err)
	assert.Empty(t, r.Results)
}

func TestManager_BeforeGroups(t *testing.T) {
	j := &journal{}
	routes := &recordingExt{name: "Routes", j: j}
	pre := &recordingExt{name: "PreRouter", j: j}
	audit := &recordingExt{name: "Audit", j: j}

	_, mgr := newModule(t, nil,
		extension.Registration{Extension: pre, Group: EXT1},
		extension.Registration{Extension: routes, Group: EXT2, BeforeGroups: []any{EXT1}},
		extension.Registration{Extension: audit, Group: EXT3},
	)

	// 请求 EXT.1 时，先运行声明在它之前的扩展
	r, err := mgr.Stage1(context.Background(), EXT1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Routes.stage1", "PreRouter.stage1"}, j.calls)
	assert.Len(t, r.Results, 1)

	// Routes 已经执行过，EXT.2 直接使用缓存的 payload
	r, err = mgr.Stage1(context.Background(), EXT2)
	require.NoError(t, err)
	assert.Equal(t, []any{"Routes-payload"}, r.Payloads())
	assert.Len(t, j.calls, 2)
}

func TestManager_RunStage1AndLaterStages(t *testing.T) {
	j := &journal{}
	one := &recordingExt{name: "One", j: j}
	two := &recordingExt{name: "Two", j: j}
	three := &stage3Only{j: j}

	inj, mgr := newModule(t, []extension.Option{extension.WithLastModule(true)},
		extension.Registration{Extension: one, Group: EXT1},
		extension.Registration{Extension: two, Group: EXT2, BeforeGroups: []any{EXT1}},
		extension.Registration{Extension: three, Group: EXT3},
	)

	ctx := context.Background()
	results, err := mgr.RunStage1(ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, EXT2, results[0].Group)
	assert.True(t, one.last)

	require.NoError(t, mgr.Stage2(ctx, inj))
	require.NoError(t, mgr.Stage3(ctx))
	// 重复调用不会再次执行
	require.NoError(t, mgr.Stage3(ctx))

	assert.Equal(t, []string{
		"Two.stage1", "One.stage1",
		"Two.stage2", "One.stage2",
		"Two.stage3", "One.stage3", "stage3Only.stage3",
	}, j.calls)
}

func TestManager_CircularDeps(t *testing.T) {
	for _, start := range []any{EXT1, EXT2} {
		j := &journal{}
		x := &recordingExt{name: "X", j: j, waitOn: EXT2}
		y := &recordingExt{name: "Y", j: j, waitOn: EXT1}

		_, mgr := newModule(t, nil,
			extension.Registration{Extension: x, Group: EXT1},
			extension.Registration{Extension: y, Group: EXT2},
		)
		x.mgr, y.mgr = mgr, mgr

		_, err := mgr.Stage1(context.Background(), start)

		var circular *extension.CircularDepsError
		require.ErrorAs(t, err, &circular)
		assert.Equal(t, extension.CodeCircularDeps, circular.Code())
		assert.Contains(t, err.Error(), "InjectionToken EXT.1")
		assert.Contains(t, err.Error(), "InjectionToken EXT.2")
		assert.Contains(t, err.Error(), "(X)")
		assert.Contains(t, err.Error(), "(Y)")
	}
}

func TestManager_CircularDepsChain(t *testing.T) {
	j := &journal{}
	x := &recordingExt{name: "X", j: j, waitOn: EXT2}
	y := &recordingExt{name: "Y", j: j, waitOn: EXT1}

	_, mgr := newModule(t, nil,
		extension.Registration{Extension: x, Group: EXT1},
		extension.Registration{Extension: y, Group: EXT2},
	)
	x.mgr, y.mgr = mgr, mgr

	_, err := mgr.Stage1(context.Background(), EXT1)
	var circular *extension.CircularDepsError
	require.ErrorAs(t, err, &circular)
	assert.Equal(t, "InjectionToken EXT.1 (X) -> InjectionToken EXT.2 (Y) -> InjectionToken EXT.1", circular.Path())
}

type failingExt struct{}

var errStage = errors.New("stage failed")

func (failingExt) Stage2(ctx context.Context, inj *di.Injector) error { return errStage }

func TestManager_StageErrors(t *testing.T) {
	inj, mgr := newModule(t, nil,
		extension.Registration{Extension: &failingExt{}, Group: EXT1},
	)

	ctx := context.Background()
	_, err := mgr.RunStage1(ctx)
	require.NoError(t, err)

	err = mgr.Stage2(ctx, inj)
	assert.ErrorIs(t, err, errStage)
}

type notAnExtension struct{}

func TestProviders_Validation(t *testing.T) {
	reg := di.NewKeyRegistry()

	_, err := extension.Providers(reg, extension.Registration{Extension: &notAnExtension{}, Group: EXT1})
	assert.Error(t, err)

	_, err = extension.Providers(reg, extension.Registration{Extension: &stage3Only{}})
	assert.Error(t, err)

	_, err = extension.Providers(reg, extension.Registration{Group: EXT1})
	assert.Error(t, err)
}

type ctorExt struct {
	Mgr *extension.Manager
}

func newCtorExt(mgr *extension.Manager) *ctorExt { return &ctorExt{Mgr: mgr} }

func (e *ctorExt) Stage1(ctx context.Context, _ bool) (any, error) { return "ctor", nil }

func TestProviders_ConstructorExtension(t *testing.T) {
	_, mgr := newModule(t, nil,
		extension.Registration{Extension: newCtorExt, Group: EXT1},
	)

	r, err := mgr.Stage1(context.Background(), EXT1)
	require.NoError(t, err)
	require.Len(t, r.Results, 1)

	ext := r.Results[0].Extension.(*ctorExt)
	assert.Same(t, mgr, ext.Mgr)
	assert.Equal(t, "*extension_test.ctorExt", r.Results[0].Name)
}

func TestManager_InvalidGroupProvider(t *testing.T) {
	reg := di.NewKeyRegistry()
	inj, err := di.ResolveAndCreate(reg, []any{
		di.ValueProvider{Token: EXT1, UseValue: &stage3Only{}},
	})
	require.NoError(t, err)

	_, err = extension.NewManager(inj, nil).Stage1(context.Background(), EXT1)
	assert.Error(t, err)
}

// counterExt 值类型扩展：两个零值实例相等，但注册在不同令牌下仍是两个扩展
type counterExt struct {
	calls *int
}

func (e counterExt) Stage1(ctx context.Context, _ bool) (any, error) {
	*e.calls++
	return *e.calls, nil
}

func (e counterExt) Stage3(ctx context.Context) error {
	*e.calls += 10
	return nil
}

func TestManager_ValueExtensionsRunSeparately(t *testing.T) {
	calls := 0
	ext := counterExt{calls: &calls}
	_, mgr := newModule(t, nil,
		extension.Registration{Extension: di.ValueProvider{UseValue: ext}, Token: di.NewToken[any]("A"), Group: EXT1},
		extension.Registration{Extension: di.ValueProvider{UseValue: ext}, Token: di.NewToken[any]("B"), Group: EXT1},
	)

	ctx := context.Background()
	r, err := mgr.Stage1(ctx, EXT1)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, r.Payloads())

	require.NoError(t, mgr.Stage3(ctx))
	assert.Equal(t, 22, calls)
}

func TestManager_SharedTokenRunsOnce(t *testing.T) {
	calls := 0
	shared := di.NewToken[any]("shared")
	_, mgr := newModule(t, nil,
		extension.Registration{Extension: di.ValueProvider{UseValue: counterExt{calls: &calls}}, Token: shared, Group: EXT1},
		extension.Registration{Extension: di.ValueProvider{UseValue: counterExt{calls: &calls}}, Token: shared, Group: EXT2},
	)

	_, err := mgr.RunStage1(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
