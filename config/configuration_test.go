package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type redisSettings struct {
	Addr string `json:"addr"`
	DB   int    `json:"db"`
}

func TestBuilder_LayersOverride(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "app.json")
	yamlPath := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"redis":{"addr":"json:6379","db":1},"name":"json"}`), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte("redis:\n  addr: yaml:6379\n"), 0o644))

	t.Setenv("MODKIT_TEST_REDIS_DB", "3")

	cfg, err := config.NewConfigurationBuilder().
		AddJsonFile(jsonPath).
		AddYamlFile(yamlPath).
		AddYamlFile(filepath.Join(dir, "missing.yaml"), true).
		AddEnvironmentVariables("MODKIT_TEST_").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "yaml:6379", cfg.Get("redis:addr"))
	assert.Equal(t, "yaml:6379", cfg.Get("redis.addr"))
	assert.Equal(t, "json", cfg.Get("name"))

	db, err := cfg.GetInt("redis:db")
	require.NoError(t, err)
	assert.Equal(t, 3, db)

	s, err := config.Load[redisSettings](cfg, "redis")
	require.NoError(t, err)
	assert.Equal(t, redisSettings{Addr: "yaml:6379", DB: 3}, s)

	assert.Equal(t, "yaml:6379", cfg.GetSection("redis").Get("addr"))
	assert.Equal(t, "fallback", cfg.GetWithDefault("nothing", "fallback"))
	assert.False(t, cfg.Exists("nothing"))
}

func TestBuilder_MissingRequiredFile(t *testing.T) {
	_, err := config.NewConfigurationBuilder().AddJsonFile("/does/not/exist.json").Build()
	assert.Error(t, err)
}

func TestGetBool(t *testing.T) {
	cfg := config.NewFromMap(map[string]any{"a": true, "b": "false", "c": 1})

	v, err := cfg.GetBool("a")
	require.NoError(t, err)
	assert.True(t, v)

	v, err = cfg.GetBool("b")
	require.NoError(t, err)
	assert.False(t, v)

	_, err = cfg.GetBool("c")
	assert.Error(t, err)
	_, err = cfg.GetBool("missing")
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := config.NewFromMap(map[string]any{"redis": map[string]any{"db": 5}})

	s, err := config.LoadOrDefault(cfg, "redis", redisSettings{Addr: "localhost:6379"})
	require.NoError(t, err)
	assert.Equal(t, redisSettings{Addr: "localhost:6379", DB: 5}, s)

	s, err = config.LoadOrDefault(cfg, "cache", redisSettings{Addr: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", s.Addr)
}

func TestReloadRefreshesMonitor(t *testing.T) {
	src := &config.InMemorySource{Data: map[string]any{"redis": map[string]any{"addr": "a"}}}
	cfg, err := config.NewConfigurationBuilder().Add(src).BuildReloadable()
	require.NoError(t, err)

	cache := config.NewOptionsCache[redisSettings](cfg, "redis")
	assert.Equal(t, "a", cache.Get().Addr)

	src.Data = map[string]any{"redis": map[string]any{"addr": "b"}}
	require.NoError(t, cfg.Reload())
	assert.Equal(t, "b", cache.Value().Addr)
}

func TestOptionsProviders(t *testing.T) {
	cfg := config.NewFromMap(map[string]any{"redis": map[string]any{"addr": "r:1"}})

	inj, err := di.ResolveAndCreate(di.NewKeyRegistry(), []any{
		di.ValueProvider{Token: config.ConfigurationToken, UseValue: cfg},
		config.Options[redisSettings]("redis"),
	})
	require.NoError(t, err)

	opt, err := di.Inject[config.Option[redisSettings]](inj)
	require.NoError(t, err)
	assert.Equal(t, "r:1", opt.Value().Addr)

	mon, err := di.Inject[config.OptionMonitor[redisSettings]](inj)
	require.NoError(t, err)
	assert.Equal(t, "r:1", mon.Value().Addr)
}

func TestConcurrentReads(t *testing.T) {
	cfg, err := config.NewConfigurationBuilder().
		AddInMemory(map[string]any{"server": map[string]any{"port": 8080}}).
		BuildReloadable()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cfg.Get("server:port")
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cfg.Reload()
	}()
	wg.Wait()

	assert.Equal(t, "8080", cfg.Get("server:port"))
}

func BenchmarkConfigGet(b *testing.B) {
	cfg, _ := config.NewConfigurationBuilder().
		AddInMemory(map[string]any{"server": map[string]any{"host": "localhost"}}).
		Build()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cfg.Get("server:host")
	}
}
