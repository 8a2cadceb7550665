package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextFormatter(t *testing.T) {
	f := NewTextFormatter()
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelInfo,
		Category: "Test",
		Message:  "Hello",
		Fields:   []Field{{Key: "key", Value: "val"}},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	str := string(out)
	assert.Contains(t, str, "INFO")
	assert.Contains(t, str, "[Test]")
	assert.Contains(t, str, "Hello")
	assert.Contains(t, str, "{key=val}")
	assert.True(t, strings.HasSuffix(str, "\n"))
}

func TestJsonFormatter(t *testing.T) {
	f := NewJsonFormatter()
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelWarn,
		Category: "Test",
		Message:  "Hello",
		Fields:   []Field{{Key: "key", Value: "val"}, {Key: "err", Value: errors.New("boom")}},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	var data map[string]any
	require.NoError(t, json.Unmarshal(out, &data))
	assert.Equal(t, "WARN", data["level"])
	assert.Equal(t, "Test", data["category"])

	fields, ok := data["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "val", fields["key"])
	assert.Equal(t, "boom", fields["err"])
}

func TestAsyncWriter(t *testing.T) {
	w := &syncWriter{}
	asyncWriter := NewAsyncWriter(w, NewTextFormatter(), 10)

	entry := &LogEntry{Time: time.Now(), Level: LogLevelInfo, Message: "Async"}
	for i := 0; i < 5; i++ {
		asyncWriter.WriteLog(entry)
	}
	require.NoError(t, asyncWriter.Close())

	lines := strings.Split(strings.TrimSpace(w.String()), "\n")
	assert.Len(t, lines, 5)
}

func TestFactory_MinimumLevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	factory := NewLoggingBuilder().
		SetMinimumLevel(LogLevelWarn).
		AddConsole(ConsoleLoggerOptions{Output: &buf}).
		Build()

	logger := factory.CreateLogger("App").WithFields(F("module", "users"))
	logger.Info("hidden")
	logger.Warn("shown", F("id", 7))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN [App] shown {module=users, id=7}")

	factory.SetMinimumLevel(LogLevelDebug)
	factory.CreateLogger("App").WithCategory("Ext").Debug("debug")
	assert.Contains(t, buf.String(), "DEBUG [Ext] debug")
}

func TestWithFieldsDoesNotShareBacking(t *testing.T) {
	var buf bytes.Buffer
	base := NewConsoleLoggerProvider(ConsoleLoggerOptions{Output: &buf}).CreateLogger("c").WithFields(F("a", 1))

	l1 := base.WithFields(F("b", 2))
	l2 := base.WithFields(F("c", 3))
	l1.Info("one")
	l2.Info("two")

	assert.Contains(t, buf.String(), "one {a=1, b=2}")
	assert.Contains(t, buf.String(), "two {a=1, c=3}")
}

func TestFileLoggerProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	p := NewFileLoggerProvider(FileLoggerOptions{Path: path, Json: true})

	p.CreateLogger("File").Error("written", F("n", 1))
	require.NoError(t, p.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "written", line["msg"])
}

func TestZapLoggerProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewZapLoggerProvider(ZapLoggerOptions{Output: &buf})

	logger := p.CreateLogger("zap").WithFields(F("request", "r-1"))
	logger.Debug("hidden")
	logger.Info("hello", F("err", errors.New("boom")))
	require.NoError(t, p.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "zap", line["logger"])
	assert.Equal(t, "r-1", line["request"])
	assert.Equal(t, "boom", line["err"])

	p.SetMinimumLevel(LogLevelDebug)
	buf.Reset()
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestZapLoggerProvider_TimeEncoding(t *testing.T) {
	var buf bytes.Buffer
	p := NewZapLoggerProvider(ZapLoggerOptions{Output: &buf})
	p.CreateLogger("zap").Info("json")
	require.NoError(t, p.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	ts, ok := line["time"].(string)
	require.True(t, ok, "time key missing: %v", line)
	_, err := time.Parse("2006-01-02T15:04:05.000Z0700", ts)
	assert.NoError(t, err)

	buf.Reset()
	dev := NewZapLoggerProvider(ZapLoggerOptions{Output: &buf, Development: true})
	dev.CreateLogger("zap").Info("console")
	require.NoError(t, dev.Sync())

	fields := strings.Split(strings.TrimSpace(buf.String()), "\t")
	require.NotEmpty(t, fields)
	_, err = time.Parse("2006-01-02T15:04:05.000Z0700", fields[0])
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "console")
}

func TestFatalExits(t *testing.T) {
	code := 0
	exit = func(c int) { code = c }
	defer func() { exit = os.Exit }()

	NewConsoleLoggerProvider(ConsoleLoggerOptions{Output: io.Discard}).CreateLogger("x").Fatal("bye")
	assert.Equal(t, 1, code)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("nothing")
	assert.NotNil(t, l.WithFields(F("a", 1)).WithCategory("x"))
}

type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func BenchmarkAsyncLogging(b *testing.B) {
	asyncWriter := NewAsyncWriter(io.Discard, NewTextFormatter(), 10000)
	defer asyncWriter.Close()

	entry := &LogEntry{Time: time.Now(), Level: LogLevelInfo, Message: "Benchmark"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		asyncWriter.WriteLog(entry)
	}
}
