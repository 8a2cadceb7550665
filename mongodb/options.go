package mongodb

import (
	"fmt"
	"time"
)

// MongoOptions MongoDB 客户端配置选项
type MongoOptions struct {
	Name        string
	Uri         string
	Username    string
	Password    string
	Database    string // 默认数据库，可选
	MaxPoolSize uint64
	MinPoolSize uint64
	Timeout     time.Duration
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string, uri string) *MongoOptions {
	return &MongoOptions{
		Name:        name,
		Uri:         uri,
		MaxPoolSize: 100,
		MinPoolSize: 5,
		Timeout:     10 * time.Second,
	}
}

// Validate 验证配置
func (o *MongoOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("mongo client name is required")
	}
	if o.Uri == "" {
		return fmt.Errorf("mongo uri is required")
	}
	if o.MinPoolSize > o.MaxPoolSize && o.MaxPoolSize > 0 {
		return fmt.Errorf("min_pool_size %d exceeds max_pool_size %d", o.MinPoolSize, o.MaxPoolSize)
	}
	return nil
}

type clientSection struct {
	Uri         string `json:"uri"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Database    string `json:"database"`
	MaxPoolSize uint64 `json:"max_pool_size"`
	MinPoolSize uint64 `json:"min_pool_size"`
	Timeout     string `json:"timeout"`
}

func (s clientSection) apply(o *MongoOptions) error {
	if s.Uri != "" {
		o.Uri = s.Uri
	}
	if s.Username != "" {
		o.Username = s.Username
	}
	if s.Password != "" {
		o.Password = s.Password
	}
	if s.Database != "" {
		o.Database = s.Database
	}
	if s.MaxPoolSize > 0 {
		o.MaxPoolSize = s.MaxPoolSize
	}
	if s.MinPoolSize > 0 {
		o.MinPoolSize = s.MinPoolSize
	}
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		o.Timeout = d
	}
	return nil
}
