package core

import (
	"reflect"
	"sync"
)

// FeatureCollection 是一个类型安全的特性集合
// 功能模块用它在多次 Option 调用之间共享构建器（例如 web 的路由表）
type FeatureCollection struct {
	features sync.Map
}

// Set 注册一个特性，同一类型只保留最后一个
func (fc *FeatureCollection) Set(feature any) {
	fc.features.Store(reflect.TypeOf(feature), feature)
}

// Get 获取一个特性
func (fc *FeatureCollection) Get(typ reflect.Type) (any, bool) {
	return fc.features.Load(typ)
}

// GetFeature 从 Runtime 获取特性，不存在时返回零值
func GetFeature[T any](rt *Runtime) T {
	var zero T
	if val, ok := rt.Features.Get(reflect.TypeOf((*T)(nil)).Elem()); ok {
		return val.(T)
	}
	return zero
}

// GetOrSetFeature 获取特性；不存在时用 create 创建并保存
func GetOrSetFeature[T any](rt *Runtime, create func() T) T {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	val, _ := rt.Features.features.LoadOrStore(typ, create())
	return val.(T)
}
