package di_test

import (
	"testing"

	"github.com/gocrud/modkit/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Repository struct {
	Engine *Engine `di:""`
	DSN    string  `di:"dsn"`
	Car    *Car    `di:"?"`
	Plain  int
}

func TestInjectFields(t *testing.T) {
	inj, err := di.ResolveAndCreate(di.NewKeyRegistry(), []any{
		NewEngine,
		di.ValueProvider{Token: "dsn", UseValue: "sqlite://memory"},
	})
	require.NoError(t, err)

	repo := &Repository{Plain: 7}
	require.NoError(t, inj.InjectFields(repo))

	assert.Same(t, di.MustInject[*Engine](inj), repo.Engine)
	assert.Equal(t, "sqlite://memory", repo.DSN)
	assert.Nil(t, repo.Car)
	assert.Equal(t, 7, repo.Plain)

	assert.Error(t, inj.InjectFields(Repository{}))
}

func TestInjectFields_MissingRequired(t *testing.T) {
	inj, err := di.ResolveAndCreate(di.NewKeyRegistry(), []any{NewEngine})
	require.NoError(t, err)

	err = inj.InjectFields(&Repository{})
	var noProvider *di.NoProviderError
	assert.ErrorAs(t, err, &noProvider)
}

func TestInjectInto(t *testing.T) {
	dsn := di.NewToken[string]("dsn")
	inj, err := di.ResolveAndCreate(di.NewKeyRegistry(), []any{
		NewEngine,
		di.ValueProvider{Token: dsn, UseValue: "postgres://"},
	})
	require.NoError(t, err)

	var engine *Engine
	require.NoError(t, inj.InjectInto(&engine))
	assert.NotNil(t, engine)

	var s string
	require.NoError(t, inj.InjectInto(&s, dsn))
	assert.Equal(t, "postgres://", s)

	assert.Error(t, inj.InjectInto(engine))
}

func TestTypedGet(t *testing.T) {
	inj, err := di.ResolveAndCreate(di.NewKeyRegistry(), []any{
		di.ValueProvider{Token: "port", UseValue: 8080},
	})
	require.NoError(t, err)

	port, err := di.Get[int](inj, "port")
	require.NoError(t, err)
	assert.Equal(t, 8080, port)

	_, err = di.Get[string](inj, "port")
	assert.Error(t, err)

	assert.Panics(t, func() { di.MustGet[int](inj, "missing") })
}
