package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncWriter 在后台 goroutine 中格式化并写入日志
type AsyncWriter struct {
	writer     io.Writer
	formatter  Formatter
	entryCh    chan *LogEntry
	wg         sync.WaitGroup
	closeOnce  sync.Once
	errHandler func(error)
}

// NewAsyncWriter 创建异步写入器并启动后台写入
func NewAsyncWriter(writer io.Writer, formatter Formatter, bufferSize int) *AsyncWriter {
	w := &AsyncWriter{
		writer:    writer,
		formatter: formatter,
		entryCh:   make(chan *LogEntry, bufferSize),
		errHandler: func(err error) {
			fmt.Fprintf(os.Stderr, "logging: async writer: %v\n", err)
		},
	}

	w.wg.Add(1)
	go w.process()
	return w
}

// WriteLog 入队一条日志；队列满时阻塞，不丢日志
func (w *AsyncWriter) WriteLog(entry *LogEntry) {
	w.entryCh <- entry
}

// Close 等待队列中的日志全部写出
func (w *AsyncWriter) Close() error {
	w.closeOnce.Do(func() {
		close(w.entryCh)
	})
	w.wg.Wait()
	if c, ok := w.writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// SetErrorHandler 设置错误处理函数
func (w *AsyncWriter) SetErrorHandler(handler func(error)) {
	w.errHandler = handler
}

func (w *AsyncWriter) process() {
	defer w.wg.Done()

	for entry := range w.entryCh {
		data, err := w.formatter.Format(entry)
		if err != nil {
			w.errHandler(err)
			continue
		}
		if _, err := w.writer.Write(data); err != nil {
			w.errHandler(err)
		}
	}
}
