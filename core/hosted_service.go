package core

import "github.com/gocrud/modkit/hosting"

// HostedService 定义了一个具有启动和停止生命周期的托管服务
type HostedService = hosting.HostedService
