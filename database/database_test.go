package database_test

import (
	"context"
	"testing"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/database"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name string
}

// UserRepo 依赖命名数据库
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func TestDatabaseFromConfig(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(
		core.WithLoggerFactory(logging.NewLoggingBuilder().Build()),
		core.WithConfiguration(func(b *config.ConfigurationBuilder) {
			b.AddInMemory(map[string]any{
				"db": map[string]any{
					"master": map[string]any{
						"dsn":            "file:master?mode=memory&cache=shared",
						"max_open_conns": 5,
					},
				},
			})
		}),
		database.New(database.WithDatabaseFromConfig("master", "db.master", func(o *database.DatabaseOptions) {
			o.AutoMigrate = []any{&User{}}
		})),
		core.WithProviders(di.ClassProvider{UseClass: NewUserRepo, Deps: []any{database.DB("master")}}),
	))
	require.NoError(t, rt.Bootstrap(context.Background()))

	repo, err := di.Inject[*UserRepo](rt.AppInjector())
	require.NoError(t, err)

	sqlDB, err := repo.db.DB()
	require.NoError(t, err)
	assert.Equal(t, 5, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, repo.db.Create(&User{Name: "test"}).Error)
	var count int64
	require.NoError(t, repo.db.Model(&User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, rt.Stop(context.Background()))
	assert.Error(t, sqlDB.Ping())
}

func TestDefaultDatabase(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(
		core.WithLoggerFactory(logging.NewLoggingBuilder().Build()),
		database.New(database.WithDatabase(database.DefaultDatabase, sqlite.Open("file:default?mode=memory&cache=shared"))),
	))
	require.NoError(t, rt.Bootstrap(context.Background()))

	db, err := di.Inject[*gorm.DB](rt.AppInjector())
	require.NoError(t, err)
	named, err := di.Get[*gorm.DB](rt.AppInjector(), database.DB(database.DefaultDatabase))
	require.NoError(t, err)
	assert.Same(t, db, named)
}

func TestDatabaseBuilder_Errors(t *testing.T) {
	builder := database.NewBuilder()
	builder.Add("invalid", nil, nil)
	builder.Add("dup", sqlite.Open("file:a?mode=memory"), nil)
	builder.Add("dup", sqlite.Open("file:b?mode=memory"), nil)

	_, err := builder.Build(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialector is required")
	assert.Contains(t, err.Error(), "already configured")
}

func TestDatabaseBuilder_UnsupportedDriver(t *testing.T) {
	cfg := config.NewFromMap(map[string]any{
		"db": map[string]any{"x": map[string]any{"driver": "oracle", "dsn": "..."}},
	})
	_, err := database.NewBuilder().AddFromConfig("x", "db:x", nil).Build(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported database driver "oracle"`)
}
