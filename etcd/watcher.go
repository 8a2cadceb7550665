package etcd

import (
	"context"
	"fmt"
	"sync"

	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// ConfigWatcher 是一个托管服务：监听 etcd 前缀，收到变更后调用 Reload
type ConfigWatcher struct {
	watcher clientv3.Watcher
	prefix  string
	config  config.Reloadable
	logger  logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(watcher clientv3.Watcher, prefix string, cfg config.Reloadable, logger logging.Logger) *ConfigWatcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ConfigWatcher{watcher: watcher, prefix: prefix, config: cfg, logger: logger}
}

func (w *ConfigWatcher) Name() string {
	return "etcd-config-watcher(" + w.prefix + ")"
}

// Start 阻塞直到 ctx 取消或监听通道关闭
func (w *ConfigWatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	ch := w.watcher.Watch(clientv3.WithRequireLeader(ctx), w.prefix, clientv3.WithPrefix())
	for resp := range ch {
		if err := resp.Err(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch %s: %w", w.prefix, err)
		}
		if len(resp.Events) == 0 {
			continue
		}
		if err := w.config.Reload(); err != nil {
			w.logger.Error("config reload failed",
				logging.F("prefix", w.prefix),
				logging.F("error", err))
			continue
		}
		w.logger.Info("config reloaded from etcd",
			logging.F("prefix", w.prefix),
			logging.F("events", len(resp.Events)),
			logging.F("revision", resp.Header.Revision))
	}
	return nil
}

func (w *ConfigWatcher) Stop(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
	return nil
}
