package di_test

import (
	"errors"
	"testing"

	"github.com/gocrud/modkit/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_LastDeclarationWins(t *testing.T) {
	reg := di.NewKeyRegistry()
	name := di.NewToken[string]("name")

	inj, err := di.ResolveAndCreate(reg, []any{
		di.ValueProvider{Token: name, UseValue: "first"},
		di.ValueProvider{Token: name, UseValue: "second"},
	})
	require.NoError(t, err)

	v, err := di.GetAs(inj, name)
	require.NoError(t, err)
	assert.Equal(t, "second", v)
}

func TestResolve_MultiKeepsDeclarationOrder(t *testing.T) {
	reg := di.NewKeyRegistry()

	resolved, err := di.Resolve(reg, []any{
		di.ValueProvider{Token: "T", UseValue: "a", Multi: true},
		NewEngine,
		di.ValueProvider{Token: "other", UseValue: 1},
		di.ValueProvider{Token: "T", UseValue: "b", Multi: true},
	})
	require.NoError(t, err)
	require.Len(t, resolved, 3)

	multi := resolved[0]
	assert.True(t, multi.Multi)
	assert.Len(t, multi.Factories, 2)

	inj := di.CreateFromResolved(reg, resolved)
	v, err := inj.Get("T")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)

	typed, err := di.Get[[]string](inj, "T")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, typed)
}

func TestResolve_MixedKinds(t *testing.T) {
	_, err := di.Resolve(di.NewKeyRegistry(), []any{
		di.ValueProvider{Token: "T", UseValue: "a", Multi: true},
		di.ValueProvider{Token: "T", UseValue: "b"},
	})

	var mixed *di.MixedProviderKindError
	require.ErrorAs(t, err, &mixed)
	assert.Equal(t, "T", mixed.Token)
	assert.Equal(t, di.CodeMixedMultiProviders, mixed.Code())
}

func TestResolve_InvalidProvider(t *testing.T) {
	cases := map[string]any{
		"number":            42,
		"nil":               nil,
		"factory no token":  di.FactoryProvider{UseFactory: NewEngine},
		"class not func":    di.ClassProvider{UseClass: &Engine{}},
		"class bad results": di.ClassProvider{UseClass: func() (*Engine, *Car) { return nil, nil }},
		"alias missing":     di.TokenProvider{Token: "a"},
	}

	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := di.Resolve(di.NewKeyRegistry(), []any{NewEngine, p})

			var invalid *di.InvalidProviderError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, 1, invalid.Index)
			assert.Equal(t, di.CodeInvalidProvider, invalid.Code())
		})
	}
}

func TestResolve_NoAnnotation(t *testing.T) {
	type Greeter struct{ Name string }
	newGreeter := func(name string) *Greeter { return &Greeter{Name: name} }

	_, err := di.Resolve(di.NewKeyRegistry(), []any{newGreeter})

	var noAnn *di.NoAnnotationError
	require.ErrorAs(t, err, &noAnn)
	assert.Equal(t, 0, noAnn.Param)
	assert.Equal(t, di.CodeNoAnnotation, noAnn.Code())

	// 显式声明依赖后可以解析
	name := di.NewToken[string]("name")
	inj, err := di.ResolveAndCreate(di.NewKeyRegistry(), []any{
		di.ValueProvider{Token: name, UseValue: "gopher"},
		di.ClassProvider{UseClass: newGreeter, Deps: []any{name}},
	})
	require.NoError(t, err)

	g, err := di.Inject[*Greeter](inj)
	require.NoError(t, err)
	assert.Equal(t, "gopher", g.Name)
}

func TestResolve_DepsCountMismatch(t *testing.T) {
	_, err := di.Resolve(di.NewKeyRegistry(), []any{
		di.ClassProvider{UseClass: NewCar, Deps: []any{di.TypeOf[*Engine](), "extra"}},
	})

	var invalid *di.InvalidProviderError
	require.ErrorAs(t, err, &invalid)
}

func TestResolve_NestedListsAndInferredToken(t *testing.T) {
	reg := di.NewKeyRegistry()
	resolved, err := di.Resolve(reg, []any{
		[]any{NewEngine, []any{NewCar}},
	})
	require.NoError(t, err)
	require.Len(t, resolved, 2)

	assert.Equal(t, di.TypeOf[*Engine](), resolved[0].Key.Token)
	assert.Equal(t, di.TypeOf[*Car](), resolved[1].Key.Token)
	assert.Equal(t, di.TypeOf[*Car](), di.ProviderToken(NewCar))
	assert.Nil(t, di.ProviderToken(42))
}

func TestResolve_ClassProviderUnderInterface(t *testing.T) {
	reg := di.NewKeyRegistry()
	inj, err := di.ResolveAndCreate(reg, []any{
		NewEngine,
		di.ClassProvider{Token: di.TypeOf[Vehicle](), UseClass: NewCar},
	})
	require.NoError(t, err)

	v, err := di.Inject[Vehicle](inj)
	require.NoError(t, err)
	assert.Equal(t, 4, v.Wheels())
	assert.False(t, inj.Has(di.TypeOf[*Car]()))
}

func TestResolve_FactoryShapes(t *testing.T) {
	reg := di.NewKeyRegistry()
	boom := errors.New("boom")

	inj, err := di.ResolveAndCreate(reg, []any{
		di.FactoryProvider{Token: "noResult", UseFactory: func() {}},
		di.FactoryProvider{Token: "onlyError", UseFactory: func() error { return nil }},
		di.FactoryProvider{Token: "failing", UseFactory: func() (int, error) { return 0, boom }},
		di.FactoryProvider{Token: "value", UseFactory: func(e *Engine) int { return e.Power * 2 }},
		NewEngine,
	})
	require.NoError(t, err)

	v, err := inj.Get("noResult")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = inj.Get("onlyError")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = inj.Get("failing")
	assert.ErrorIs(t, err, boom)

	n, err := di.Get[int](inj, "value")
	require.NoError(t, err)
	assert.Equal(t, 300, n)
}
