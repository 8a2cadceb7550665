package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/modkit/logging"
)

// Server Web 主机（基于 Gin），作为托管服务运行
type Server struct {
	engine *gin.Engine
	server *http.Server
	logger logging.Logger

	mu     sync.Mutex
	addr   string
	ln     net.Listener
	routes []RouteInfo
}

func newServer(opts *serverOptions, logger logging.Logger) *Server {
	engine := gin.New()
	// 默认中间件：恢复 panic
	engine.Use(gin.Recovery())
	if opts.accessLog {
		engine.Use(accessLog(logger))
	}
	engine.Use(opts.middleware...)

	return &Server{
		engine: engine,
		logger: logger,
		addr:   opts.addr(),
		server: &http.Server{
			Handler:           engine,
			ReadHeaderTimeout: opts.readHeaderTimeout,
		},
	}
}

func (s *Server) Name() string { return "web" }

// Handler 返回 HTTP 处理器（用于 httptest）
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Engine 获取 Gin 引擎（用于高级定制）
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr 返回监听地址 (e.g., "[::]:50234")，Start 之前返回配置的地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Routes 返回已挂载的路由，按路径排序
func (s *Server) Routes() []RouteInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]RouteInfo(nil), s.routes...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func (s *Server) mount(r *route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.routes {
		if existing.Method == r.info.Method && existing.Path == r.info.Path {
			return fmt.Errorf("web: route %s %s already mounted by module %s", r.info.Method, r.info.Path, existing.Module)
		}
	}
	s.engine.Handle(r.info.Method, r.info.Path, r.serve)
	s.routes = append(s.routes, *r.info)
	return nil
}

// Start 监听端口并阻塞，直到 Stop 被调用
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("web host started", logging.F("address", ln.Addr().String()))

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅关闭
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping web host")
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown web host gracefully", logging.F("error", err))
		return err
	}
	return nil
}

func accessLog(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			logging.F("method", c.Request.Method),
			logging.F("path", c.FullPath()),
			logging.F("status", c.Writer.Status()),
			logging.F("elapsed", time.Since(start)))
	}
}
