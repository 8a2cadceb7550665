package hosting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gocrud/modkit/logging"
	"go.uber.org/multierr"
)

// HostedService 托管服务接口
// 框架在独立的 goroutine 中调用 Start，Start 可以阻塞直到 ctx 被取消
type HostedService interface {
	// Start 启动服务。返回非 context 取消的错误时，应用会开始关闭。
	Start(ctx context.Context) error

	// Stop 执行优雅关闭逻辑，必须遵守 ctx 的超时
	Stop(ctx context.Context) error
}

// Func 把一个阻塞函数适配为托管服务，Stop 为空操作
type Func func(ctx context.Context) error

func (f Func) Start(ctx context.Context) error { return f(ctx) }
func (f Func) Stop(context.Context) error      { return nil }

// serviceName 日志中使用的服务名称
func serviceName(svc HostedService) string {
	if n, ok := svc.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", svc)
}

// HostedServiceManager 托管服务管理器
type HostedServiceManager struct {
	services []HostedService
	logger   logging.Logger
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewHostedServiceManager 创建托管服务管理器
func NewHostedServiceManager(logger logging.Logger) *HostedServiceManager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HostedServiceManager{logger: logger}
}

// Add 添加托管服务
func (m *HostedServiceManager) Add(service HostedService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, service)
}

// Len 返回已添加的服务数量
func (m *HostedServiceManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.services)
}

// StartAll 并发启动所有托管服务，返回的通道接收服务的启动错误
func (m *HostedServiceManager) StartAll(ctx context.Context) <-chan error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errCh := make(chan error, len(m.services))
	m.logger.Info("starting hosted services", logging.F("count", len(m.services)))

	for _, service := range m.services {
		m.wg.Add(1)
		go func(svc HostedService) {
			defer m.wg.Done()
			name := serviceName(svc)

			err := svc.Start(ctx)
			switch {
			case err == nil:
				m.logger.Debug("hosted service completed", logging.F("service", name))
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				m.logger.Debug("hosted service stopped", logging.F("service", name))
			default:
				m.logger.Error("hosted service failed", logging.F("service", name), logging.F("error", err))
				errCh <- fmt.Errorf("hosted service %s: %w", name, err)
			}
		}(service)
	}

	return errCh
}

// StopAll 按添加的相反顺序停止所有托管服务，合并所有停止错误
func (m *HostedServiceManager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.logger.Info("stopping hosted services", logging.F("count", len(m.services)))

	var err error
	for i := len(m.services) - 1; i >= 0; i-- {
		svc := m.services[i]
		if stopErr := svc.Stop(ctx); stopErr != nil {
			m.logger.Error("failed to stop hosted service",
				logging.F("service", serviceName(svc)), logging.F("error", stopErr))
			err = multierr.Append(err, stopErr)
		}
	}
	return err
}

// Wait 等待所有 Start 调用返回
func (m *HostedServiceManager) Wait() {
	m.wg.Wait()
}
