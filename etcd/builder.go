package etcd

import (
	"fmt"
	"strings"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/logging"
	"go.uber.org/multierr"
)

type clientEntry struct {
	name      string
	section   string
	configure func(*EtcdClientOptions)
}

type watchEntry struct {
	client string
	prefix string
}

// Builder Etcd 客户端配置构建器
type Builder struct {
	entries    []clientEntry
	watches    []watchEntry
	names      map[string]struct{}
	errors     error
	registered map[string]struct{}
}

// NewBuilder 创建 Etcd 构建器
func NewBuilder() *Builder {
	return &Builder{
		names:      make(map[string]struct{}),
		registered: make(map[string]struct{}),
	}
}

// AddClient 添加一个 etcd 客户端配置
func (b *Builder) AddClient(name string, configure func(*EtcdClientOptions)) *Builder {
	return b.add(clientEntry{name: name, configure: configure})
}

// AddClientFromConfig 添加从配置节读取的客户端
//
// 配置示例（YAML）：
//
//	etcd:
//	  main:
//	    endpoints: [10.0.0.1:2379, 10.0.0.2:2379]
//	    dial_timeout: 3s
func (b *Builder) AddClientFromConfig(name, section string, configure func(*EtcdClientOptions)) *Builder {
	return b.add(clientEntry{name: name, section: section, configure: configure})
}

// WatchConfig 监听 client 下的 prefix，变化时重新加载应用配置
func (b *Builder) WatchConfig(client, prefix string) *Builder {
	if _, exists := b.names[client]; !exists {
		b.errors = multierr.Append(b.errors, fmt.Errorf("etcd watch: client '%s' is not configured", client))
		return b
	}
	if strings.TrimSpace(prefix) == "" {
		b.errors = multierr.Append(b.errors, fmt.Errorf("etcd watch: prefix is required"))
		return b
	}
	b.watches = append(b.watches, watchEntry{client: client, prefix: prefix})
	return b
}

func (b *Builder) add(e clientEntry) *Builder {
	if e.name == "" {
		b.errors = multierr.Append(b.errors, fmt.Errorf("etcd client name is required"))
		return b
	}
	if _, exists := b.names[e.name]; exists {
		b.errors = multierr.Append(b.errors, fmt.Errorf("etcd client '%s' already configured", e.name))
		return b
	}
	b.names[e.name] = struct{}{}
	b.entries = append(b.entries, e)
	return b
}

// Err 返回添加配置时收集的错误
func (b *Builder) Err() error {
	return b.errors
}

// Build 构建 Etcd 客户端工厂
func (b *Builder) Build(cfg config.Configuration, logger logging.Logger) (*EtcdClientFactory, error) {
	if b.errors != nil {
		return nil, fmt.Errorf("etcd configuration errors: %w", b.errors)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	factory := NewEtcdClientFactory()
	fail := func(err error) (*EtcdClientFactory, error) {
		return nil, multierr.Append(err, factory.Close())
	}

	for _, e := range b.entries {
		opts := NewDefaultOptions(e.name)
		if e.section != "" && cfg != nil && cfg.Exists(e.section) {
			var section clientSection
			if err := cfg.Bind(e.section, &section); err != nil {
				return fail(fmt.Errorf("etcd client '%s': %w", e.name, err))
			}
			if err := section.apply(opts); err != nil {
				return fail(fmt.Errorf("etcd client '%s': %w", e.name, err))
			}
		}
		if e.configure != nil {
			e.configure(opts)
		}

		if err := opts.Validate(); err != nil {
			return fail(fmt.Errorf("invalid etcd configuration for '%s': %w", e.name, err))
		}
		if err := factory.Register(*opts); err != nil {
			return fail(err)
		}

		logger.Info("etcd client registered",
			logging.F("name", opts.Name),
			logging.F("endpoints", strings.Join(opts.Endpoints, ",")))
	}
	return factory, nil
}
