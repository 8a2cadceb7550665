package di

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Resolve 把原始提供者列表规范化为 ResolvedProvider 列表。
//
// 规则：
//   - multi 令牌的所有声明按声明顺序合并为一个 ResolvedProvider，每个声明贡献一个工厂；
//   - 非 multi 令牌以最后一次声明为准（后声明覆盖先声明，便于测试时替换实现）；
//   - 同一令牌混用 multi 与非 multi 返回 MixedProviderKindError；
//   - 列表项可以是嵌套的 []any，会被展开。
//
// 结果按令牌第一次出现的顺序排列。
func Resolve(reg *KeyRegistry, providers []any) ([]*ResolvedProvider, error) {
	flat := flatten(providers, nil)

	order := make([]*ResolvedProvider, 0, len(flat))
	byID := make(map[int]*ResolvedProvider, len(flat))

	for i, raw := range flat {
		p, err := normalize(raw, i)
		if err != nil {
			return nil, err
		}

		key := reg.Get(p.providerToken())
		factory, err := buildFactory(reg, key, p)
		if err != nil {
			return nil, err
		}

		existing, ok := byID[key.ID]
		if !ok {
			rp := &ResolvedProvider{
				Key:       key,
				Factories: []ResolvedFactory{factory},
				Multi:     p.isMulti(),
			}
			byID[key.ID] = rp
			order = append(order, rp)
			continue
		}

		if existing.Multi != p.isMulti() {
			return nil, &MixedProviderKindError{Token: key.Token}
		}
		if existing.Multi {
			existing.Factories = append(existing.Factories, factory)
		} else {
			existing.Factories = []ResolvedFactory{factory}
		}
	}

	return order, nil
}

func flatten(providers []any, out []any) []any {
	for _, p := range providers {
		if nested, ok := p.([]any); ok {
			out = flatten(nested, out)
			continue
		}
		out = append(out, p)
	}
	return out
}

// normalize 把列表项转换为四种提供者之一并做形状校验
func normalize(raw any, index int) (Provider, error) {
	invalid := func(reason string) error {
		return &InvalidProviderError{Provider: raw, Index: index, Reason: reason}
	}

	switch p := raw.(type) {
	case ValueProvider:
		if !isValidToken(p.Token) {
			return nil, invalid("token must be a non-nil comparable value")
		}
		return p, nil

	case ClassProvider:
		fnType, err := constructorType(p.UseClass)
		if err != nil {
			return nil, invalid(err.Error())
		}
		if p.Token == nil {
			p.Token = fnType.Out(0)
		}
		if !isValidToken(p.Token) {
			return nil, invalid("token must be a comparable value")
		}
		return p, nil

	case FactoryProvider:
		if !isValidToken(p.Token) {
			return nil, invalid("factory providers need an explicit comparable token")
		}
		if err := checkFactoryType(p.UseFactory); err != nil {
			return nil, invalid(err.Error())
		}
		return p, nil

	case TokenProvider:
		if !isValidToken(p.Token) || !isValidToken(p.UseToken) {
			return nil, invalid("both Token and UseToken must be non-nil comparable values")
		}
		return p, nil
	}

	if raw != nil && reflect.TypeOf(raw).Kind() == reflect.Func {
		return normalize(ClassProvider{UseClass: raw}, index)
	}
	return nil, invalid("")
}

// constructorType 校验 UseClass：返回 T 或 (T, error) 的非变参函数
func constructorType(fn any) (reflect.Type, error) {
	if fn == nil {
		return nil, fmt.Errorf("UseClass is nil")
	}
	t := reflect.TypeOf(fn)
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("UseClass must be a constructor function, got %v", t)
	}
	if t.IsVariadic() {
		return nil, fmt.Errorf("variadic constructors are not supported")
	}
	switch t.NumOut() {
	case 1:
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("second result of a constructor must be error")
		}
	default:
		return nil, fmt.Errorf("constructor must return T or (T, error)")
	}
	if t.Out(0) == errorType {
		return nil, fmt.Errorf("constructor must return a value before the error")
	}
	return t, nil
}

// checkFactoryType 工厂可以没有返回值，也可以只返回 error
func checkFactoryType(fn any) error {
	if fn == nil {
		return fmt.Errorf("UseFactory is nil")
	}
	t := reflect.TypeOf(fn)
	if t.Kind() != reflect.Func {
		return fmt.Errorf("UseFactory must be a function, got %v", t)
	}
	if t.IsVariadic() {
		return fmt.Errorf("variadic factories are not supported")
	}
	if t.NumOut() > 2 || (t.NumOut() == 2 && t.Out(1) != errorType) {
		return fmt.Errorf("factory must return (), T, error or (T, error)")
	}
	return nil
}

// buildFactory 为单个提供者生成 ResolvedFactory
func buildFactory(reg *KeyRegistry, key DualKey, p Provider) (ResolvedFactory, error) {
	switch p := p.(type) {
	case ValueProvider:
		value := p.UseValue
		return ResolvedFactory{
			Fn: func([]any) (any, error) { return value, nil },
		}, nil

	case TokenProvider:
		return ResolvedFactory{
			Fn: func(args []any) (any, error) { return args[0], nil },
			Dependencies: []Dependency{
				{Key: reg.Get(p.UseToken), Required: true},
			},
		}, nil

	case ClassProvider:
		return reflectFactory(reg, key, p.UseClass, p.Deps)

	case FactoryProvider:
		return reflectFactory(reg, key, p.UseFactory, p.Deps)
	}

	// normalize 只产生上面四种类型
	panic(fmt.Sprintf("di: unknown provider type %T", p))
}

func reflectFactory(reg *KeyRegistry, key DualKey, fn any, deps []any) (ResolvedFactory, error) {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()

	dependencies, err := dependencyList(reg, key, fnType, deps)
	if err != nil {
		return ResolvedFactory{}, err
	}

	// 预先计算参数类型，调用时不再反射函数签名
	argTypes := make([]reflect.Type, fnType.NumIn())
	for i := range argTypes {
		argTypes[i] = fnType.In(i)
	}

	return ResolvedFactory{
		Fn: func(args []any) (any, error) {
			return invokeFunction(fnVal, argTypes, args)
		},
		Dependencies: dependencies,
	}, nil
}

// dependencyList 从显式 Deps 或参数类型生成依赖列表
func dependencyList(reg *KeyRegistry, key DualKey, fnType reflect.Type, deps []any) ([]Dependency, error) {
	numIn := fnType.NumIn()
	result := make([]Dependency, 0, numIn)

	if deps == nil {
		for i := 0; i < numIn; i++ {
			argType := fnType.In(i)
			if !canInferToken(argType) {
				return nil, &NoAnnotationError{Token: key.Token, Param: i, ParamType: argType}
			}
			result = append(result, Dependency{Key: reg.Get(argType), Required: true})
		}
		return result, nil
	}

	if len(deps) < numIn {
		return nil, &NoAnnotationError{Token: key.Token, Param: len(deps), ParamType: fnType.In(len(deps))}
	}
	if len(deps) > numIn {
		return nil, &InvalidProviderError{
			Provider: key.Token,
			Index:    -1,
			Reason:   fmt.Sprintf("%d deps declared for a function with %d parameters", len(deps), numIn),
		}
	}

	for i, d := range deps {
		dep, ok := d.(Dep)
		if !ok {
			dep = Dep{Token: d}
		}
		if !isValidToken(dep.Token) {
			return nil, &NoAnnotationError{Token: key.Token, Param: i, ParamType: fnType.In(i)}
		}
		result = append(result, Dependency{
			Key:        reg.Get(dep.Token),
			Required:   !dep.Optional,
			Visibility: dep.Visibility,
		})
	}
	return result, nil
}

// canInferToken 报告参数类型能否直接作为依赖令牌。
// 命名类型（或指向命名类型的指针）可以；基础类型、any、匿名切片/映射/函数不行。
func canInferToken(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		return t.Elem().PkgPath() != ""
	}
	return t.PkgPath() != ""
}

// invokeFunction 调用工厂或构造函数。
// nil 参数转换为参数类型的零值；[]any 参数可以转换为任意元素类型的切片（multi 提供者）。
func invokeFunction(fnVal reflect.Value, argTypes []reflect.Type, args []any) (any, error) {
	in := make([]reflect.Value, len(argTypes))
	for i, argType := range argTypes {
		v, err := convertArg(args[i], argType)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in[i] = v
	}

	results := fnVal.Call(in)
	if len(results) == 0 {
		return nil, nil
	}

	last := results[len(results)-1]
	if last.Type() == errorType {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		if len(results) == 1 {
			return nil, nil
		}
	}

	return results[0].Interface(), nil
}

func convertArg(arg any, argType reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(argType), nil
	}

	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(argType) {
		return v, nil
	}

	if items, ok := arg.([]any); ok && argType.Kind() == reflect.Slice {
		elemType := argType.Elem()
		out := reflect.MakeSlice(argType, len(items), len(items))
		for i, item := range items {
			iv, err := convertArg(item, elemType)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(iv)
		}
		return out, nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %T as %v", arg, argType)
}
