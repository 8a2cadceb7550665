package core

import (
	"fmt"
	"strings"

	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/extension"
)

// Module 模块清单
//
// 每个模块在启动时得到一个以应用注入器为父的模块注入器。
// ProvidersPerApp 汇总到应用注入器；ProvidersPerMod 和扩展提供者进入模块注入器；
// ProvidersPerRou、ProvidersPerReq 由功能模块（例如 web）按路由和请求创建注入器时使用。
//
// 示例：
//
//	var Orders = &core.Module{
//		Name:            "orders",
//		Imports:         []*core.Module{Storage},
//		ProvidersPerMod: []any{NewOrderService},
//		Extensions:      []extension.Registration{web.Routes(NewOrderRoutes)},
//	}
type Module struct {
	Name string

	// Imports 中模块的 Exports 会复制到本模块注入器
	Imports []*Module
	// Exports 本模块向导入方公开的令牌（必须由 ProvidersPerMod 提供）
	Exports []any

	ProvidersPerApp []any
	ProvidersPerMod []any
	ProvidersPerRou []any
	ProvidersPerReq []any

	Extensions []extension.Registration
}

// ModuleToken 模块注入器中当前 *Module 的令牌
var ModuleToken = di.TypeOf[*Module]()

// sortModules 按导入关系排序：被导入的模块排在导入方之前，其余保持声明顺序。
// 只被导入而未显式声明的模块也会加入结果。
func sortModules(modules []*Module) ([]*Module, error) {
	const (
		visiting = iota + 1
		done
	)

	state := make(map[*Module]int)
	names := make(map[string]*Module)
	var sorted []*Module
	var stack []*Module

	var visit func(m *Module) error
	visit = func(m *Module) error {
		switch state[m] {
		case done:
			return nil
		case visiting:
			return importCycle(stack, m)
		}

		if m.Name == "" {
			return fmt.Errorf("core: module without a name")
		}
		if other, ok := names[m.Name]; ok && other != m {
			return fmt.Errorf("core: duplicate module name %q", m.Name)
		}
		names[m.Name] = m

		state[m] = visiting
		stack = append(stack, m)
		for _, imp := range m.Imports {
			if imp == nil {
				return fmt.Errorf("core: module %s imports nil", m.Name)
			}
			if err := visit(imp); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[m] = done
		sorted = append(sorted, m)
		return nil
	}

	for _, m := range modules {
		if m == nil {
			return nil, fmt.Errorf("core: nil module")
		}
		if err := visit(m); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

func importCycle(stack []*Module, start *Module) error {
	var chain []string
	for i, m := range stack {
		if m == start {
			for _, n := range stack[i:] {
				chain = append(chain, n.Name)
			}
			break
		}
	}
	chain = append(chain, start.Name)
	return fmt.Errorf("core: cyclic module imports: %s", strings.Join(chain, " -> "))
}
