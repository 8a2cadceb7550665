package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
	"github.com/robfig/cron/v3"
)

// Service Cron 定时任务托管服务
type Service struct {
	cron     *cron.Cron
	injector *di.Injector
	logger   logging.Logger
	mu       sync.RWMutex
	jobs     map[string]cron.EntryID // 任务名称到任务ID的映射
}

// options Cron 服务配置选项
type options struct {
	// Location 时区设置，默认 UTC
	Location *time.Location
	// EnableSeconds 是否启用秒级精度（默认分钟级）
	EnableSeconds bool
	// EnableCronLogger 是否启用 cron 库的内部调度日志（默认 false）
	EnableCronLogger bool
}

func newService(inj *di.Injector, logger logging.Logger, opts ...func(*options)) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	opt := &options{Location: time.UTC}
	for _, o := range opts {
		o(opt)
	}

	cronOpts := []cron.Option{
		cron.WithLocation(opt.Location),
		cron.WithChain(cron.Recover(newCronLogger(logger))),
	}
	// 只在启用时添加 cron 库的日志记录器
	if opt.EnableCronLogger {
		cronOpts = append(cronOpts, cron.WithLogger(newCronLogger(logger)))
	}
	if opt.EnableSeconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	return &Service{
		cron:     cron.New(cronOpts...),
		injector: inj,
		logger:   logger,
		jobs:     make(map[string]cron.EntryID),
	}
}

// addJob 解析处理函数并注册到调度器。每次执行都用注入器重新实例化，
// 因此处理函数拿到的是执行时的依赖。
func (s *Service) addJob(job jobDefinition) error {
	resolved, err := di.Resolve(s.injector.Registry(), []any{di.FactoryProvider{
		Token:      di.NewToken[any]("cron job " + job.name),
		UseFactory: job.handler,
		Deps:       job.deps,
	}})
	if err != nil {
		return fmt.Errorf("cron job '%s': %w", job.name, err)
	}
	rp := resolved[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(job.spec, func() {
		start := time.Now()
		s.logger.Debug("cron job started", logging.F("job", job.name))
		if _, err := s.injector.InstantiateResolved(rp); err != nil {
			s.logger.Error("cron job failed",
				logging.F("job", job.name),
				logging.F("error", err))
			return
		}
		s.logger.Debug("cron job completed",
			logging.F("job", job.name),
			logging.F("elapsed", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job '%s': %w", job.name, err)
	}

	s.jobs[job.name] = entryID
	s.logger.Info("cron job registered",
		logging.F("job", job.name),
		logging.F("spec", job.spec))
	return nil
}

// Jobs 返回已注册的任务名称
func (s *Service) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Next 返回任务的下一次执行时间，未启动或不存在时返回零值
func (s *Service) Next(name string) time.Time {
	s.mu.RLock()
	id, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Remove 移除定时任务
func (s *Service) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.jobs[name]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.logger.Info("cron job removed", logging.F("job", name))
	}
}

func (s *Service) Name() string { return "cron" }

// Start 启动调度器并阻塞到 ctx 取消
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("cron service starting", logging.F("jobs", len(s.Jobs())))
	s.cron.Start()
	<-ctx.Done()
	return nil
}

// Stop 停止调度器，等待正在运行的任务完成
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("cron service stopping")

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger 适配器：将框架日志接口适配到 cron 的日志接口
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.F("error", err))
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.F(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
