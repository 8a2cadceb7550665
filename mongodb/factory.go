package mongodb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gocrud/mgo"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/multierr"
)

// mongoClient 一个命名连接：驱动客户端用于 Ping 和 Database，mgo 客户端提供给业务代码
type mongoClient struct {
	client   *mongo.Client
	mgo      *mgo.Client
	database string
}

// MongoFactory MongoDB 客户端工厂
type MongoFactory struct {
	clients map[string]mongoClient
	mu      sync.RWMutex
}

// NewMongoFactory 创建客户端工厂
func NewMongoFactory() *MongoFactory {
	return &MongoFactory{
		clients: make(map[string]mongoClient),
	}
}

// Register 注册 MongoDB 客户端。mongo.Connect 不等待服务器，连接在首次操作时建立。
func (f *MongoFactory) Register(opts MongoOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[opts.Name]; exists {
		return fmt.Errorf("mongo client '%s' already registered", opts.Name)
	}

	client, err := mongo.Connect(clientOptions(opts).ApplyURI(opts.Uri))
	if err != nil {
		return fmt.Errorf("failed to create mongo client '%s': %w", opts.Name, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	m, err := mgo.NewClient(ctx, opts.Uri, clientOptions(opts))
	if err != nil {
		return multierr.Append(
			fmt.Errorf("failed to create mgo client '%s': %w", opts.Name, err),
			client.Disconnect(ctx),
		)
	}

	f.clients[opts.Name] = mongoClient{client: client, mgo: m, database: opts.Database}
	return nil
}

func clientOptions(opts MongoOptions) *options.ClientOptions {
	clientOpts := options.Client()
	if opts.Username != "" || opts.Password != "" {
		clientOpts.SetAuth(options.Credential{
			Username: opts.Username,
			Password: opts.Password,
		})
	}
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(opts.MinPoolSize)
	}
	if opts.Timeout > 0 {
		clientOpts.SetConnectTimeout(opts.Timeout)
		clientOpts.SetServerSelectionTimeout(opts.Timeout)
	}
	return clientOpts
}

// Get 获取指定名称的客户端
func (f *MongoFactory) Get(name string) (*mongo.Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c, exists := f.clients[name]
	if !exists {
		return nil, fmt.Errorf("mongo client '%s' not found", name)
	}
	return c.client, nil
}

// Mgo 获取指定名称的 mgo 客户端
func (f *MongoFactory) Mgo(name string) (*mgo.Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c, exists := f.clients[name]
	if !exists {
		return nil, fmt.Errorf("mongo client '%s' not found", name)
	}
	return c.mgo, nil
}

// Database 返回客户端配置的默认数据库
func (f *MongoFactory) Database(name string) (*mongo.Database, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c, exists := f.clients[name]
	if !exists {
		return nil, fmt.Errorf("mongo client '%s' not found", name)
	}
	if c.database == "" {
		return nil, fmt.Errorf("mongo client '%s' has no database configured", name)
	}
	return c.client.Database(c.database), nil
}

// Names 返回排序后的客户端名称
func (f *MongoFactory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.clients))
	for name := range f.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ping 检查所有客户端
func (f *MongoFactory) Ping(ctx context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var err error
	for name, c := range f.clients {
		if pingErr := c.client.Ping(ctx, readpref.Primary()); pingErr != nil {
			err = multierr.Append(err, fmt.Errorf("ping mongo client '%s': %w", name, pingErr))
		}
	}
	return err
}

// Close 断开所有客户端
func (f *MongoFactory) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	for name, c := range f.clients {
		if closeErr := c.mgo.Disconnect(ctx); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close mgo client '%s': %w", name, closeErr))
		}
		if closeErr := c.client.Disconnect(ctx); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close client '%s': %w", name, closeErr))
		}
	}
	f.clients = make(map[string]mongoClient)
	return err
}
