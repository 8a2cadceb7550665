package modkit

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gocrud/modkit/core"
	"go.uber.org/multierr"
)

// Run 启动应用程序并阻塞，直到收到退出信号 (Ctrl+C, kill) 或 Runtime.Shutdown 被调用
func Run(opts ...core.Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, opts...)
}

// RunContext 与 Run 相同，ctx 取消时退出
func RunContext(ctx context.Context, opts ...core.Option) error {
	rt, err := Bootstrap(ctx, opts...)
	if err != nil {
		return err
	}

	if err := rt.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rt.ShutdownTimeout())
		defer cancel()
		return multierr.Append(err, rt.Stop(shutdownCtx))
	}

	select {
	case <-ctx.Done():
		rt.Logger().Info("shutdown signal received")
	case <-rt.Done():
		rt.Logger().Info("shutdown requested")
	}

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rt.ShutdownTimeout())
	defer cancel()
	return rt.Stop(shutdownCtx)
}
