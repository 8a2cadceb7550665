package logging

import (
	"io"
	"os"
	"sync"
	"time"
)

// entrySink 接收格式化前的日志条目
type entrySink interface {
	WriteLog(entry *LogEntry)
}

// syncSink 同步格式化并写入
type syncSink struct {
	mu        sync.Mutex
	writer    io.Writer
	formatter Formatter
}

func (s *syncSink) WriteLog(entry *LogEntry) {
	data, err := s.formatter.Format(entry)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
}

// sinkLogger 是控制台和文件提供者共用的 Logger 实现
type sinkLogger struct {
	levelMethods
	sink     entrySink
	level    *levelVar
	category string
	fields   []Field
}

func newSinkLogger(sink entrySink, level *levelVar, category string, fields []Field) *sinkLogger {
	l := &sinkLogger{sink: sink, level: level, category: category, fields: fields}
	l.levelMethods = levelMethods{log: l.Log}
	return l
}

func (l *sinkLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level < l.level.get() {
		return
	}
	l.sink.WriteLog(&LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   mergeFields(l.fields, fields),
	})
}

func (l *sinkLogger) WithFields(fields ...Field) Logger {
	return newSinkLogger(l.sink, l.level, l.category, mergeFields(l.fields, fields))
}

func (l *sinkLogger) WithCategory(category string) Logger {
	return newSinkLogger(l.sink, l.level, category, l.fields)
}

// levelVar 提供者与它创建的所有 Logger 共享的最小级别
type levelVar struct {
	mu    sync.RWMutex
	level LogLevel
}

func (v *levelVar) get() LogLevel {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.level
}

func (v *levelVar) set(level LogLevel) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.level = level
}

// ConsoleLoggerOptions 控制台日志选项
type ConsoleLoggerOptions struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
	Output           io.Writer
	// Formatter 为空时按上面的选项使用 TextFormatter
	Formatter Formatter
}

// ConsoleLoggerProvider 控制台日志提供者
type ConsoleLoggerProvider struct {
	sink  *syncSink
	level *levelVar
}

// NewConsoleLoggerProvider 创建控制台日志提供者
func NewConsoleLoggerProvider(options ConsoleLoggerOptions) *ConsoleLoggerProvider {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	formatter := options.Formatter
	if formatter == nil {
		formatter = &TextFormatter{
			IncludeTimestamp: options.IncludeTimestamp,
			TimestampFormat:  options.TimestampFormat,
			ColorOutput:      options.ColorOutput,
		}
	}
	return &ConsoleLoggerProvider{
		sink:  &syncSink{writer: options.Output, formatter: formatter},
		level: &levelVar{level: LogLevelInfo},
	}
}

func (p *ConsoleLoggerProvider) CreateLogger(category string) Logger {
	return newSinkLogger(p.sink, p.level, category, nil)
}

func (p *ConsoleLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.level.set(level)
}

// FileLoggerOptions 文件日志选项
type FileLoggerOptions struct {
	Path string
	// Json 为 true 时每行输出一个 JSON 对象
	Json bool
	// BufferSize 异步队列长度
	BufferSize int
}

// FileLoggerProvider 文件日志提供者，通过 AsyncWriter 写入
type FileLoggerProvider struct {
	options FileLoggerOptions
	level   *levelVar

	mu     sync.Mutex
	writer *AsyncWriter
	err    error
}

// NewFileLoggerProvider 创建文件日志提供者，文件在第一次创建 Logger 时打开
func NewFileLoggerProvider(options FileLoggerOptions) *FileLoggerProvider {
	if options.BufferSize <= 0 {
		options.BufferSize = 1024
	}
	return &FileLoggerProvider{
		options: options,
		level:   &levelVar{level: LogLevelInfo},
	}
}

func (p *FileLoggerProvider) CreateLogger(category string) Logger {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer == nil && p.err == nil {
		file, err := os.OpenFile(p.options.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			p.err = err
		} else {
			var formatter Formatter = NewTextFormatter()
			if p.options.Json {
				formatter = NewJsonFormatter()
			}
			p.writer = NewAsyncWriter(file, formatter, p.options.BufferSize)
		}
	}

	if p.err != nil {
		// 文件打不开时退回到标准错误
		stderr := &syncSink{writer: os.Stderr, formatter: NewTextFormatter()}
		return newSinkLogger(stderr, p.level, category, nil)
	}
	return newSinkLogger(p.writer, p.level, category, nil)
}

func (p *FileLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.level.set(level)
}

// Close 刷新并关闭日志文件
func (p *FileLoggerProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}
