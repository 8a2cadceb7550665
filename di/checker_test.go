package di_test

import (
	"testing"

	"github.com/gocrud/modkit/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDeps_DoesNotInstantiate(t *testing.T) {
	c := &counter{}
	inj, err := di.ResolveAndCreate(di.NewKeyRegistry(), []any{
		di.FactoryProvider{Token: di.TypeOf[*Engine](), UseFactory: c.engine},
		NewCar,
	})
	require.NoError(t, err)

	require.NoError(t, di.CheckDeps(inj, di.TypeOf[*Car](), di.VisibilityDefault))
	assert.Equal(t, int32(0), c.n.Load())

	// 检查之后正常解析仍然只实例化一次
	di.MustInject[*Car](inj)
	assert.Equal(t, int32(1), c.n.Load())
}

func TestCheckDeps_Missing(t *testing.T) {
	reg := di.NewKeyRegistry()
	app, err := di.ResolveAndCreate(reg, []any{NewCar}, "App")
	require.NoError(t, err)
	mod, err := app.ResolveAndCreateChild(nil, "Mod")
	require.NoError(t, err)

	err = di.CheckDeps(mod, di.TypeOf[*Car](), di.VisibilityDefault)
	var noProvider *di.NoProviderError
	require.ErrorAs(t, err, &noProvider)
	assert.Equal(t, "*di_test.Car [Mod >> App] -> *di_test.Engine [App]", noProvider.Path())

	// 被忽略的令牌视为已满足
	assert.NoError(t, di.CheckDeps(mod, di.TypeOf[*Car](), di.VisibilityDefault, di.TypeOf[*Engine]()))
}

func TestCheckDeps_Cycle(t *testing.T) {
	inj, err := di.ResolveAndCreate(di.NewKeyRegistry(), []any{NewCycA, NewCycB})
	require.NoError(t, err)

	err = di.CheckDeps(inj, di.TypeOf[*CycA](), di.VisibilityDefault)
	var cyclic *di.CyclicDependencyError
	require.ErrorAs(t, err, &cyclic)
	assert.Equal(t, "*di_test.CycA -> *di_test.CycB -> *di_test.CycA", cyclic.Path())
}

func TestCheckDeps_VisibilityAndOptional(t *testing.T) {
	reg := di.NewKeyRegistry()
	parent, err := di.ResolveAndCreate(reg, []any{NewEngine})
	require.NoError(t, err)
	child, err := parent.ResolveAndCreateChild([]any{
		di.ClassProvider{Token: "self", UseClass: NewCar, Deps: []any{di.Self(di.TypeOf[*Engine]())}},
		di.ClassProvider{Token: "skip", UseClass: NewCar, Deps: []any{di.SkipSelf(di.TypeOf[*Engine]())}},
		di.ClassProvider{Token: "opt", UseClass: NewNeedy, Deps: []any{di.Optional(di.TypeOf[*Missing]())}},
		di.ValueProvider{Token: "multi", UseValue: 1, Multi: true},
		di.FactoryProvider{Token: "multi", UseFactory: func(m *Missing) int { return 2 }, Multi: true},
	})
	require.NoError(t, err)

	var noProvider *di.NoProviderError
	assert.ErrorAs(t, di.CheckDeps(child, "self", di.VisibilityDefault), &noProvider)
	assert.NoError(t, di.CheckDeps(child, "skip", di.VisibilityDefault))
	assert.NoError(t, di.CheckDeps(child, "opt", di.VisibilityDefault))
	// multi 提供者的每个工厂都会被检查
	assert.ErrorAs(t, di.CheckDeps(child, "multi", di.VisibilityDefault), &noProvider)
	assert.ErrorAs(t, di.CheckDeps(child, di.TypeOf[*Engine](), di.VisibilitySelf), &noProvider)
	assert.NoError(t, di.CheckDeps(child, di.TypeOf[*Engine](), di.VisibilitySkipSelf))
}

func TestCheckResolved(t *testing.T) {
	type Guard struct{ Car *Car }
	newGuard := func(c *Car) *Guard { return &Guard{Car: c} }

	reg := di.NewKeyRegistry()
	inj, err := di.ResolveAndCreate(reg, []any{NewCar})
	require.NoError(t, err)

	resolved, err := di.Resolve(reg, []any{newGuard})
	require.NoError(t, err)

	err = di.CheckResolved(inj, resolved[0])
	var noProvider *di.NoProviderError
	require.ErrorAs(t, err, &noProvider)
	assert.Contains(t, err.Error(), "*di_test.Engine")

	assert.NoError(t, di.CheckResolved(inj, resolved[0], di.TypeOf[*Engine]()))
}
