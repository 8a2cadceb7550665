package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/modkit/di"
)

// serve 处理一次请求：创建请求注入器，依次执行守卫和处理函数
func (r *route) serve(c *gin.Context) {
	ctxProvider, err := di.Resolve(r.injector.Registry(), []any{di.ValueProvider{Token: ContextToken, UseValue: c}})
	if err != nil {
		abort(c, err)
		return
	}
	resolved := make([]*di.ResolvedProvider, 0, len(r.perReq)+1)
	resolved = append(resolved, r.perReq...)
	resolved = append(resolved, ctxProvider...)
	inj := r.injector.CreateChildFromResolved(resolved, "Req")

	for _, g := range r.guards {
		v, err := inj.InstantiateResolved(g)
		if err != nil {
			abort(c, err)
			return
		}
		guard, ok := v.(Guard)
		if !ok {
			abort(c, fmt.Errorf("web: %T does not implement Guard", v))
			return
		}
		allowed, err := guard.CanActivate(c)
		if err != nil {
			abort(c, err)
			return
		}
		if !allowed {
			if !c.Writer.Written() {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			}
			c.Abort()
			return
		}
	}

	v, err := inj.InstantiateResolved(r.handler)
	if err != nil {
		abort(c, err)
		return
	}
	if v != nil && !c.Writer.Written() {
		c.JSON(http.StatusOK, v)
	}
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	if c.Writer.Written() {
		c.Abort()
		return
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		c.AbortWithStatusJSON(httpErr.Status, gin.H{"error": httpErr.Message})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
