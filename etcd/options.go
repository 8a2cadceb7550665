package etcd

import (
	"fmt"
	"time"
)

// EtcdClientOptions etcd 客户端配置选项
type EtcdClientOptions struct {
	Name               string        // 客户端名称
	Endpoints          []string      // etcd 服务器地址列表
	DialTimeout        time.Duration // 连接超时时间
	Username           string        // 用户名（可选）
	Password           string        // 密码（可选）
	AutoSyncInterval   time.Duration // 自动同步间隔（可选）
	MaxCallSendMsgSize int           // 最大发送消息大小（可选）
	MaxCallRecvMsgSize int           // 最大接收消息大小（可选）
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *EtcdClientOptions {
	return &EtcdClientOptions{
		Name:        name,
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
	}
}

// Validate 验证配置
func (o *EtcdClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("etcd client name is required")
	}
	if len(o.Endpoints) == 0 {
		return fmt.Errorf("etcd endpoints are required")
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("etcd dial timeout must be positive")
	}
	return nil
}

type clientSection struct {
	Endpoints   []string `json:"endpoints"`
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	DialTimeout string   `json:"dial_timeout"`
}

func (s clientSection) apply(o *EtcdClientOptions) error {
	if len(s.Endpoints) > 0 {
		o.Endpoints = s.Endpoints
	}
	if s.Username != "" {
		o.Username = s.Username
		o.Password = s.Password
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
