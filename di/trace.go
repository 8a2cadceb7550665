package di

import (
	"fmt"
	"strings"
)

type traceItem struct {
	key      DualKey
	injector *Injector
}

// pathTracer 记录一次顶层解析经过的 (token, injector) 对。
// 它只属于一次 Get 调用，不在调用之间共享。
type pathTracer struct {
	items []traceItem
}

// push 记录一项；若同一对已在栈中，仍然追加（闭合环路）并返回 true。
func (t *pathTracer) push(key DualKey, inj *Injector) (cycle bool) {
	for _, item := range t.items {
		if item.key.ID == key.ID && item.injector == inj {
			cycle = true
			break
		}
	}
	t.items = append(t.items, traceItem{key: key, injector: inj})
	return cycle
}

func (t *pathTracer) pop(n int) {
	t.items = t.items[:len(t.items)-n]
}

type pathEntry struct {
	name   string
	levels []string
}

// render 生成可读路径。
// 只涉及一个注入器时输出 "A -> B -> C"；否则把跨层级连续查找的同一令牌合并为一项，
// 并标注所有层级，例如 "Car [Mod] -> Engine [Req >> Mod >> App]"。
// 路径只有一个令牌且只有一个层级时返回空串。
func (t *pathTracer) render() string {
	if len(t.items) == 0 {
		return ""
	}

	var entries []pathEntry
	injectors := make(map[*Injector]struct{})
	for i, item := range t.items {
		injectors[item.injector] = struct{}{}
		label := item.injector.label()
		if i > 0 && t.items[i-1].key.ID == item.key.ID && t.items[i-1].injector != item.injector {
			last := &entries[len(entries)-1]
			last.levels = append(last.levels, label)
			continue
		}
		entries = append(entries, pathEntry{name: item.key.String(), levels: []string{label}})
	}

	if len(injectors) == 1 {
		if len(entries) == 1 {
			return ""
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.name
		}
		return strings.Join(names, " -> ")
	}

	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s [%s]", e.name, strings.Join(e.levels, " >> "))
	}
	return strings.Join(parts, " -> ")
}
