package modkit

import (
	"context"

	"github.com/gocrud/modkit/core"
)

// Bootstrap 应用所有选项并构建注入器树，不启动托管服务
// 适用于测试和需要自行控制生命周期的场景
func Bootstrap(ctx context.Context, opts ...core.Option) (*core.Runtime, error) {
	rt := core.NewRuntime()
	if err := rt.Apply(opts...); err != nil {
		return nil, err
	}
	if err := rt.Bootstrap(ctx); err != nil {
		return nil, err
	}
	return rt, nil
}
