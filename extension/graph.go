package extension

import (
	"strings"

	"github.com/gocrud/modkit/di"
)

// GroupCycleError 组声明的 BeforeGroups/AfterGroups 约束构成环
type GroupCycleError struct {
	Chain []any
}

func (e *GroupCycleError) Error() string {
	names := make([]string, len(e.Chain))
	for i, g := range e.Chain {
		names[i] = di.TokenName(g)
	}
	return "Detected cyclic dependency between extension groups: " + strings.Join(names, " -> ")
}

func (e *GroupCycleError) Code() string { return "groupCycle" }
func (e *GroupCycleError) Path() string {
	names := make([]string, len(e.Chain))
	for i, g := range e.Chain {
		names[i] = di.TokenName(g)
	}
	return strings.Join(names, " -> ")
}

// SortGroups 计算所有组的全序：
// A.BeforeGroups 含 B 时 A 排在 B 之前；A.AfterGroups 含 B 时 A 排在 B 之后。
// 相互之间没有约束的组保持声明顺序（先按 Group 出现顺序，再按被引用顺序）。
func SortGroups(configs []GroupConfig) ([]any, error) {
	var nodes []any
	seen := make(map[any]struct{})
	addNode := func(g any) {
		if _, ok := seen[g]; ok {
			return
		}
		seen[g] = struct{}{}
		nodes = append(nodes, g)
	}

	for _, c := range configs {
		addNode(c.Group)
	}
	for _, c := range configs {
		for _, g := range c.BeforeGroups {
			addNode(g)
		}
		for _, g := range c.AfterGroups {
			addNode(g)
		}
	}

	// runsBefore[X] 是必须排在 X 之前的组
	runsBefore := make(map[any][]any)
	edge := make(map[[2]any]struct{})
	addEdge := func(first, then any) {
		k := [2]any{first, then}
		if _, ok := edge[k]; ok {
			return
		}
		edge[k] = struct{}{}
		runsBefore[then] = append(runsBefore[then], first)
	}
	for _, c := range configs {
		for _, g := range c.BeforeGroups {
			addEdge(c.Group, g)
		}
		for _, g := range c.AfterGroups {
			addEdge(g, c.Group)
		}
	}

	// 基于 DFS 的拓扑排序
	visited := make(map[any]bool)
	onStack := make(map[any]bool)
	var stack []any
	order := make([]any, 0, len(nodes))

	var visit func(any) error
	visit = func(n any) error {
		visited[n] = true
		onStack[n] = true
		stack = append(stack, n)

		for _, p := range runsBefore[n] {
			if onStack[p] {
				return &GroupCycleError{Chain: cycleFrom(stack, p)}
			}
			if !visited[p] {
				if err := visit(p); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		onStack[n] = false
		order = append(order, n)
		return nil
	}

	for _, n := range nodes {
		if !visited[n] {
			if err := visit(n); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// cycleFrom 从栈中截取以 start 开始的环，并闭合到 start
func cycleFrom(stack []any, start any) []any {
	i := len(stack) - 1
	for ; i > 0; i-- {
		if stack[i] == start {
			break
		}
	}
	chain := append([]any{}, stack[i:]...)
	return append(chain, start)
}
