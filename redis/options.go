package redis

import (
	"fmt"
	"time"
)

// RedisClientOptions Redis 客户端配置选项
type RedisClientOptions struct {
	Name         string        // 客户端名称
	Addr         string        // Redis 服务器地址 (host:port)
	Password     string        // 密码（可选）
	DB           int           // 数据库编号
	DialTimeout  time.Duration // 连接超时时间
	ReadTimeout  time.Duration // 读取超时时间
	WriteTimeout time.Duration // 写入超时时间
	PoolSize     int           // 连接池大小
	MinIdleConns int           // 最小空闲连接数
	MaxRetries   int           // 最大重试次数
}

// clientSection 配置文件中一个客户端的结构
type clientSection struct {
	Addr         string `json:"addr"`
	Password     string `json:"password"`
	DB           *int   `json:"db"`
	PoolSize     int    `json:"pool_size"`
	MinIdleConns int    `json:"min_idle_conns"`
	DialTimeout  string `json:"dial_timeout"`
}

func (s clientSection) apply(o *RedisClientOptions) error {
	if s.Addr != "" {
		o.Addr = s.Addr
	}
	if s.Password != "" {
		o.Password = s.Password
	}
	if s.DB != nil {
		o.DB = *s.DB
	}
	if s.PoolSize > 0 {
		o.PoolSize = s.PoolSize
	}
	if s.MinIdleConns > 0 {
		o.MinIdleConns = s.MinIdleConns
	}
	if s.DialTimeout != "" {
		d, err := time.ParseDuration(s.DialTimeout)
		if err != nil {
			return fmt.Errorf("dial_timeout: %w", err)
		}
		o.DialTimeout = d
	}
	return nil
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *RedisClientOptions {
	return &RedisClientOptions{
		Name:         name,
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	}
}

// Validate 验证配置
func (o *RedisClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("redis client name is required")
	}
	if o.Addr == "" {
		return fmt.Errorf("redis address is required")
	}
	if o.DB < 0 {
		return fmt.Errorf("redis database number must be non-negative")
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("redis dial timeout must be positive")
	}
	return nil
}
