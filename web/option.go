package web

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/modkit/config"
	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

// ServerToken 应用注入器中 *Server 的令牌
var ServerToken = di.TypeOf[*Server]()

type serverOptions struct {
	host              string
	port              int
	mode              string
	section           string
	accessLog         bool
	readHeaderTimeout time.Duration
	middleware        []gin.HandlerFunc
}

func (o *serverOptions) addr() string {
	return fmt.Sprintf("%s:%d", o.host, o.port)
}

// serverSection 配置节结构
//
//	web:
//	  host: 0.0.0.0
//	  port: 8080
//	  mode: release
type serverSection struct {
	Host string `json:"host"`
	Port *int   `json:"port"`
	Mode string `json:"mode"`
}

// BuilderOption 用于配置 Web 服务器
type BuilderOption func(*serverOptions)

// WithPort 设置端口，0 表示随机端口
func WithPort(port int) BuilderOption {
	return func(o *serverOptions) {
		o.port = port
	}
}

// WithHost 设置监听地址
func WithHost(host string) BuilderOption {
	return func(o *serverOptions) {
		o.host = host
	}
}

// WithMode 设置 Gin 模式（debug、release、test）
func WithMode(mode string) BuilderOption {
	return func(o *serverOptions) {
		o.mode = mode
	}
}

// WithConfigSection 从配置节读取 host / port / mode，配置节的值覆盖代码中的值
func WithConfigSection(section string) BuilderOption {
	return func(o *serverOptions) {
		o.section = section
	}
}

// WithAccessLog 每个请求记录一条日志
func WithAccessLog() BuilderOption {
	return func(o *serverOptions) {
		o.accessLog = true
	}
}

// WithMiddleware 使用全局中间件
func WithMiddleware(middleware ...gin.HandlerFunc) BuilderOption {
	return func(o *serverOptions) {
		o.middleware = append(o.middleware, middleware...)
	}
}

// New 启用 Web 能力：应用注入器提供 *Server，并把它注册为托管服务。
// 路由由模块通过 Controllers 注册的扩展在 stage3 挂载。
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		if core.GetFeature[*serverOptions](rt) != nil {
			return fmt.Errorf("web: New called more than once")
		}
		o := &serverOptions{port: 8080, mode: gin.ReleaseMode, readHeaderTimeout: 10 * time.Second}
		for _, opt := range opts {
			opt(o)
		}
		rt.Features.Set(o)

		return core.WithHostedService(di.FactoryProvider{
			Token: ServerToken,
			UseFactory: func(cfg config.Configuration, factory logging.LoggerFactory) (*Server, error) {
				if o.section != "" && cfg.Exists(o.section) {
					var section serverSection
					if err := cfg.Bind(o.section, &section); err != nil {
						return nil, fmt.Errorf("web: %w", err)
					}
					if section.Host != "" {
						o.host = section.Host
					}
					if section.Port != nil {
						o.port = *section.Port
					}
					if section.Mode != "" {
						o.mode = section.Mode
					}
				}
				gin.SetMode(o.mode)
				return newServer(o, factory.CreateLogger("web")), nil
			},
			Deps: []any{config.ConfigurationToken, di.TypeOf[logging.LoggerFactory]()},
		})(rt)
	}
}
