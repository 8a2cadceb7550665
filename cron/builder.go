package cron

import (
	"fmt"
	"time"

	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
	"go.uber.org/multierr"
)

// jobDefinition 任务定义
type jobDefinition struct {
	spec    string
	name    string
	handler any
	deps    []any
}

// Builder Cron 配置构建器
type Builder struct {
	enableSeconds    bool
	enableCronLogger bool
	location         string
	jobs             []jobDefinition
	names            map[string]struct{}
	errors           error
}

// NewBuilder 创建 Cron 构建器
func NewBuilder() *Builder {
	return &Builder{
		location: "UTC",
		names:    make(map[string]struct{}),
	}
}

// WithSeconds 启用秒级精度
func (b *Builder) WithSeconds() *Builder {
	b.enableSeconds = true
	return b
}

// WithLocation 设置时区
func (b *Builder) WithLocation(location string) *Builder {
	b.location = location
	return b
}

// EnableCronLogger 启用 cron 库的内部调度日志
func (b *Builder) EnableCronLogger() *Builder {
	b.enableCronLogger = true
	return b
}

// AddJob 添加任务。handler 的参数在每次执行时从应用注入器解析，
// 可以返回 error；deps 为空时由参数类型推断依赖。
//
// 示例：
//
//	builder.AddJob("0 */5 * * * *", "sync-data", func(svc *DataService, logger logging.Logger) error {
//	    return svc.Sync()
//	})
func (b *Builder) AddJob(spec, name string, handler any, deps ...any) *Builder {
	if name == "" {
		b.errors = multierr.Append(b.errors, fmt.Errorf("cron job name is required"))
		return b
	}
	if _, exists := b.names[name]; exists {
		b.errors = multierr.Append(b.errors, fmt.Errorf("cron job '%s' already registered", name))
		return b
	}
	if handler == nil {
		b.errors = multierr.Append(b.errors, fmt.Errorf("cron job '%s': handler is required", name))
		return b
	}
	b.names[name] = struct{}{}
	b.jobs = append(b.jobs, jobDefinition{spec: spec, name: name, handler: handler, deps: deps})
	return b
}

// Err 返回添加任务时收集的错误
func (b *Builder) Err() error {
	return b.errors
}

// build 创建服务并注册所有任务。表达式或处理函数无效时返回错误。
func (b *Builder) build(inj *di.Injector, logger logging.Logger) (*Service, error) {
	if b.errors != nil {
		return nil, fmt.Errorf("cron configuration errors: %w", b.errors)
	}
	loc, err := time.LoadLocation(b.location)
	if err != nil {
		return nil, fmt.Errorf("cron: invalid location %q: %w", b.location, err)
	}

	svc := newService(inj, logger, func(opts *options) {
		opts.EnableSeconds = b.enableSeconds
		opts.EnableCronLogger = b.enableCronLogger
		opts.Location = loc
	})

	for _, job := range b.jobs {
		if err := svc.addJob(job); err != nil {
			return nil, err
		}
	}
	return svc, nil
}
