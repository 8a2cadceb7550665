package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
)

// RedisClientFactory 按名称持有 Redis 客户端
type RedisClientFactory struct {
	clients map[string]*redis.Client
	mu      sync.RWMutex
}

// NewRedisClientFactory 创建客户端工厂
func NewRedisClientFactory() *RedisClientFactory {
	return &RedisClientFactory{
		clients: make(map[string]*redis.Client),
	}
}

// Register 创建并保存客户端。go-redis 惰性建立连接，这里不访问网络。
func (f *RedisClientFactory) Register(opts RedisClientOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[opts.Name]; exists {
		return fmt.Errorf("redis client '%s' already registered", opts.Name)
	}

	f.clients[opts.Name] = redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		MaxRetries:   opts.MaxRetries,
	})
	return nil
}

// Get 获取指定名称的 Redis 客户端
func (f *RedisClientFactory) Get(name string) (*redis.Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	client, exists := f.clients[name]
	if !exists {
		return nil, fmt.Errorf("redis client '%s' not found", name)
	}
	return client, nil
}

// Names 返回排序后的客户端名称
func (f *RedisClientFactory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.clients))
	for name := range f.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ping 检查所有客户端的连接
func (f *RedisClientFactory) Ping(ctx context.Context) error {
	var err error
	for _, name := range f.Names() {
		client, _ := f.Get(name)
		if pingErr := client.Ping(ctx).Err(); pingErr != nil {
			err = multierr.Append(err, fmt.Errorf("redis client '%s': %w", name, pingErr))
		}
	}
	return err
}

// Close 关闭所有 Redis 客户端
func (f *RedisClientFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	for name, client := range f.clients {
		if closeErr := client.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close client '%s': %w", name, closeErr))
		}
	}
	f.clients = make(map[string]*redis.Client)
	return err
}
