package di_test

import (
	"fmt"
	"testing"

	"github.com/gocrud/modkit/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRegistry_StableIDs(t *testing.T) {
	reg := di.NewKeyRegistry()

	engine := di.TypeOf[*Engine]()
	dsn := di.NewToken[string]("dsn")

	k1 := reg.Get(engine)
	k2 := reg.Get(dsn)
	k3 := reg.Get("plain")

	assert.Equal(t, 0, k1.ID)
	assert.Equal(t, 1, k2.ID)
	assert.Equal(t, 2, k3.ID)

	// 再次获取得到同一个 DualKey
	assert.Equal(t, k1, reg.Get(engine))
	assert.Equal(t, k2, reg.Get(dsn))
	assert.Equal(t, 3, reg.Len())
}

func TestKeyRegistry_SameNameDifferentTokens(t *testing.T) {
	reg := di.NewKeyRegistry()

	a := di.NewToken[int]("port")
	b := di.NewToken[int]("port")

	assert.NotEqual(t, reg.Get(a).ID, reg.Get(b).ID)
}

func TestKeyRegistry_BeforeToken(t *testing.T) {
	reg := di.NewKeyRegistry()

	g1 := di.NewToken[any]("ROUTES")
	g2 := di.NewToken[any]("ROUTES")

	b1 := reg.BeforeToken(g1)
	require.Same(t, b1, reg.BeforeToken(g1))

	b2 := reg.BeforeToken(g2)
	assert.NotEqual(t, b1, b2)
	assert.Equal(t, "BEFORE InjectionToken ROUTES", fmt.Sprint(b1))
	assert.Equal(t, "BEFORE InjectionToken ROUTES-1", fmt.Sprint(b2))

	// 派生令牌本身可以作为普通令牌登记
	assert.NotEqual(t, reg.Get(b1).ID, reg.Get(b2).ID)
}

func TestInjectionToken_String(t *testing.T) {
	tk := di.NewToken[string]("dsn")
	assert.Equal(t, "dsn", tk.Name())
	assert.Equal(t, "InjectionToken dsn", tk.String())
	assert.Equal(t, di.TypeOf[string](), tk.Type())
	assert.Equal(t, "InjectionToken dsn", di.TokenName(tk))
	assert.Equal(t, "*di_test.Engine", di.TokenName(di.TypeOf[*Engine]()))
}

func TestNamed(t *testing.T) {
	reg := di.NewKeyRegistry()
	primary := di.Named[*Engine]("primary")

	assert.Equal(t, primary, di.Named[*Engine]("primary"))
	assert.NotEqual(t, primary, di.Named[*Engine]("backup"))
	assert.Equal(t, reg.Get(primary).ID, reg.Get(di.Named[*Engine]("primary")).ID)
	assert.Equal(t, "*di_test.Engine(primary)", fmt.Sprint(primary))

	inj, err := di.ResolveAndCreate(reg, []any{
		di.ValueProvider{Token: primary, UseValue: &Engine{Power: 300}},
	})
	require.NoError(t, err)
	e, err := di.Get[*Engine](inj, di.Named[*Engine]("primary"))
	require.NoError(t, err)
	assert.Equal(t, 300, e.Power)
}
