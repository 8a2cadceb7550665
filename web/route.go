package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/modkit/di"
)

// ContextToken 每个请求注入器中 *gin.Context 的令牌
var ContextToken = di.TypeOf[*gin.Context]()

// RouteInfoToken 路由注入器中 *RouteInfo 的令牌，守卫可以依赖它读取路由元数据
var RouteInfoToken = di.TypeOf[*RouteInfo]()

// Guard 在处理函数之前执行，返回 false 时请求以 403 结束
type Guard interface {
	CanActivate(c *gin.Context) (bool, error)
}

// Route 描述一条路由
//
// Handler 是一个函数，参数从请求注入器解析（*gin.Context、ProvidersPerReq、
// 模块和应用中的服务），可以返回 T、error 或 (T, error)。返回值不为空且
// 处理函数没有写响应时，以 JSON 返回。
//
// Guards 是守卫的提供者（构造函数或 di 提供者结构体），每个请求实例化一次。
type Route struct {
	Method   string
	Path     string
	Handler  any
	Deps     []any
	Guards   []any
	Metadata any
}

// RouteInfo 路由的只读描述，在路由注入器中以 RouteInfoToken 提供
type RouteInfo struct {
	Method   string
	Path     string
	Module   string
	Metadata any
}

// Controller 一组共享前缀和守卫的路由
type Controller struct {
	Prefix string
	Guards []any
	Routes []Route
}

// GET 创建 GET 路由
func GET(path string, handler any, guards ...any) Route {
	return Route{Method: http.MethodGet, Path: path, Handler: handler, Guards: guards}
}

// POST 创建 POST 路由
func POST(path string, handler any, guards ...any) Route {
	return Route{Method: http.MethodPost, Path: path, Handler: handler, Guards: guards}
}

// PUT 创建 PUT 路由
func PUT(path string, handler any, guards ...any) Route {
	return Route{Method: http.MethodPut, Path: path, Handler: handler, Guards: guards}
}

// DELETE 创建 DELETE 路由
func DELETE(path string, handler any, guards ...any) Route {
	return Route{Method: http.MethodDelete, Path: path, Handler: handler, Guards: guards}
}

// WithMetadata 返回附带元数据的路由副本
func (r Route) WithMetadata(meta any) Route {
	r.Metadata = meta
	return r
}

// HTTPError 处理函数或守卫返回它来指定状态码
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// NewHTTPError 创建 HTTPError
func NewHTTPError(status int, message string) *HTTPError {
	return &HTTPError{Status: status, Message: message}
}

func joinPath(prefix, path string) string {
	full := "/" + strings.Trim(strings.TrimSpace(prefix), "/")
	if p := strings.Trim(path, "/"); p != "" {
		if full == "/" {
			full = ""
		}
		full += "/" + p
	}
	return full
}
