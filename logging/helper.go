package logging

import "os"

// exit 在测试中可替换
var exit = os.Exit

// NewLogger 创建一个默认的控制台 Logger（便于测试使用）
func NewLogger() Logger {
	builder := NewLoggingBuilder()
	builder.AddConsole()
	factory := builder.Build()
	return factory.CreateLogger("default")
}

// NewNopLogger 返回丢弃所有日志的 Logger
func NewNopLogger() Logger {
	return nopLogger{}
}
