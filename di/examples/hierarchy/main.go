package main

import (
	"fmt"

	"github.com/gocrud/modkit/di"
)

type Config struct {
	Env string
}

type RequestID string

type Handler struct {
	Config *Config
	ID     RequestID
}

func NewHandler(cfg *Config, id RequestID) *Handler {
	return &Handler{Config: cfg, ID: id}
}

func main() {
	reg := di.NewKeyRegistry()

	// 应用级：整个进程共享
	app, err := di.ResolveAndCreate(reg, []any{
		di.ValueProvider{Token: di.TypeOf[*Config](), UseValue: &Config{Env: "dev"}},
	}, "App")
	if err != nil {
		panic(err)
	}

	// 请求级：Handler 只解析一次，每个请求创建一个注入器
	perReq, err := di.Resolve(reg, []any{NewHandler})
	if err != nil {
		panic(err)
	}

	for i := 1; i <= 2; i++ {
		id := RequestID(fmt.Sprintf("req-%d", i))
		idProvider, _ := di.Resolve(reg, []any{di.ValueProvider{Token: di.TypeOf[RequestID](), UseValue: id}})

		req := app.CreateChildFromResolved(append(idProvider, perReq...), "Req")
		h := di.MustInject[*Handler](req)
		fmt.Println(h.ID, h.Config.Env)
	}

	// 没有 Config 的根注入器：错误信息包含完整路径
	bare := di.CreateFromResolved(reg, nil, "Bare")
	_, err = di.Inject[*Handler](bare.CreateChildFromResolved(perReq, "Req"))
	fmt.Println(err)
}
