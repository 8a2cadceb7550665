package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLoggerOptions zap 日志选项
type ZapLoggerOptions struct {
	// Output 为空时写到标准输出
	Output io.Writer
	// Development 使用控制台编码和开发模式配置
	Development bool
}

// ZapLoggerProvider 基于 go.uber.org/zap 的结构化日志提供者
type ZapLoggerProvider struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

// NewZapLoggerProvider 创建 zap 日志提供者
func NewZapLoggerProvider(options ZapLoggerOptions) *ZapLoggerProvider {
	out := options.Output
	if out == nil {
		out = os.Stdout
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	encCfg := zap.NewProductionEncoderConfig()
	if options.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if options.Development {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), level)
	return &ZapLoggerProvider{
		base:  zap.New(core),
		level: level,
	}
}

// NewZapLoggerProviderFrom 包装已有的 *zap.Logger
func NewZapLoggerProviderFrom(logger *zap.Logger) *ZapLoggerProvider {
	return &ZapLoggerProvider{
		base:  logger,
		level: zap.NewAtomicLevelAt(zapcore.DebugLevel),
	}
}

func (p *ZapLoggerProvider) CreateLogger(category string) Logger {
	return newZapLogger(p.base.Named(category), p, category)
}

func (p *ZapLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.level.SetLevel(toZapLevel(level))
}

// Sync 刷新缓冲
func (p *ZapLoggerProvider) Sync() error {
	return p.base.Sync()
}

func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelTrace, LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		// Fatal 由 levelMethods 负责退出，zap 只记录
		return zapcore.DPanicLevel
	}
}

type zapLogger struct {
	levelMethods
	z        *zap.Logger
	provider *ZapLoggerProvider
	category string
	fields   []Field
}

func newZapLogger(z *zap.Logger, p *ZapLoggerProvider, category string, fields ...Field) *zapLogger {
	l := &zapLogger{z: z, provider: p, category: category, fields: fields}
	l.levelMethods = levelMethods{log: l.Log}
	return l
}

func (l *zapLogger) Log(level LogLevel, msg string, fields ...Field) {
	zl := toZapLevel(level)
	if !l.provider.level.Enabled(zl) {
		return
	}
	if ce := l.z.Check(zl, msg); ce != nil {
		ce.Write(zapFields(fields)...)
	}
}

func (l *zapLogger) WithFields(fields ...Field) Logger {
	return newZapLogger(l.z.With(zapFields(fields)...), l.provider, l.category, mergeFields(l.fields, fields)...)
}

func (l *zapLogger) WithCategory(category string) Logger {
	z := l.provider.base.Named(category).With(zapFields(l.fields)...)
	return newZapLogger(z, l.provider, category, l.fields...)
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		if err, ok := f.Value.(error); ok {
			out[i] = zap.NamedError(f.Key, err)
			continue
		}
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}
