package hosting

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocrud/modkit/logging"
)

// TimedHostedService 按固定间隔执行任务的托管服务。任务失败只记录日志，不停止服务。
type TimedHostedService struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context) error
	logger   logging.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewTimedHostedService 创建定时托管服务
func NewTimedHostedService(name string, interval time.Duration, task func(ctx context.Context) error, logger logging.Logger) *TimedHostedService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TimedHostedService{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (s *TimedHostedService) Name() string {
	return s.name
}

// Start 阻塞运行，直到 Stop 被调用或 ctx 被取消
func (s *TimedHostedService) Start(ctx context.Context) error {
	s.started.Store(true)
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.task(ctx); err != nil {
				s.logger.Error("timed task failed", logging.F("service", s.name), logging.F("error", err))
			}
		case <-s.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop 通知服务停止并等待当前任务结束。未启动的服务立即返回。
func (s *TimedHostedService) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if !s.started.Load() {
		return nil
	}

	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
