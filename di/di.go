package di

import (
	"fmt"
	"reflect"
	"strings"
)

// Get 按令牌解析并断言为 T
//
// 示例：
//
//	dsn, err := di.Get[string](inj, DSN)
func Get[T any](inj *Injector, token any, visibility ...Visibility) (T, error) {
	var zero T
	val, err := inj.Get(token, visibility...)
	if err != nil {
		return zero, err
	}
	return as[T](val, token)
}

// MustGet 同 Get，失败时 panic
func MustGet[T any](inj *Injector, token any, visibility ...Visibility) T {
	v, err := Get[T](inj, token, visibility...)
	if err != nil {
		panic(err)
	}
	return v
}

// Inject 以类型 T 本身为令牌解析
//
// 示例：
//
//	car, err := di.Inject[*Car](inj)
func Inject[T any](inj *Injector, visibility ...Visibility) (T, error) {
	return Get[T](inj, TypeOf[T](), visibility...)
}

// MustInject 同 Inject，失败时 panic
func MustInject[T any](inj *Injector, visibility ...Visibility) T {
	return MustGet[T](inj, TypeOf[T](), visibility...)
}

// GetAs 解析 InjectionToken，类型由令牌携带
func GetAs[T any](inj *Injector, token *InjectionToken[T], visibility ...Visibility) (T, error) {
	return Get[T](inj, token, visibility...)
}

func as[T any](val any, token any) (T, error) {
	var zero T
	if val == nil {
		// nil 对指针/接口是合法的零值（可选依赖）
		return zero, nil
	}
	if v, ok := val.(T); ok {
		return v, nil
	}
	// multi 令牌解析为 []any，允许转换为具体元素类型的切片
	if items, ok := val.([]any); ok {
		out, err := convertArg(items, TypeOf[T]())
		if err == nil {
			return out.Interface().(T), nil
		}
	}
	return zero, fmt.Errorf("di: value for %s is %T, expected %v", tokenName(token), val, TypeOf[T]())
}

// InjectInto 把解析结果写入 target 指向的变量
//
// 用法示例：
//
//	var svc *UserService
//	inj.InjectInto(&svc)
//
// 支持 Token 注入：
//
//	var dsn string
//	inj.InjectInto(&dsn, DSN)
func (i *Injector) InjectInto(target any, token ...any) error {
	targetVal := reflect.ValueOf(target)
	if targetVal.Kind() != reflect.Pointer {
		return fmt.Errorf("di: InjectInto target must be a pointer, got %v", targetVal.Kind())
	}
	if targetVal.IsNil() {
		return fmt.Errorf("di: InjectInto target pointer is nil")
	}

	elem := targetVal.Elem()
	var tk any = elem.Type()
	if len(token) > 0 && token[0] != nil {
		tk = token[0]
	}

	instance, err := i.Get(tk)
	if err != nil {
		return err
	}
	v, err := convertArg(instance, elem.Type())
	if err != nil {
		return fmt.Errorf("di: InjectInto %s: %w", tokenName(tk), err)
	}
	elem.Set(v)
	return nil
}

// InjectFields 为结构体中带 `di` 标签的字段注入依赖。
//
// 标签格式: `di:""`（按字段类型）, `di:"name"`（字符串令牌）, `di:"name,optional"` 或 `di:"?"`。
// 可选字段找不到提供者时保持原值。
func (i *Injector) InjectFields(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("di: InjectFields target must be a non-nil pointer to struct, got %T", target)
	}
	v = v.Elem()
	t := v.Type()

	for n := 0; n < t.NumField(); n++ {
		field := t.Field(n)
		tagValue, hasTag := field.Tag.Lookup("di")
		if !hasTag {
			continue
		}
		if !field.IsExported() {
			return fmt.Errorf("di: field %s.%s is unexported", t, field.Name)
		}

		// 解析 tag: "name,option1,option2"
		parts := strings.Split(tagValue, ",")
		name := strings.TrimSpace(parts[0])
		optional := false
		if name == "?" || name == "optional" {
			name = ""
			optional = true
		}
		for _, part := range parts[1:] {
			part = strings.TrimSpace(part)
			if part == "optional" || part == "?" {
				optional = true
			}
		}

		var token any = field.Type
		if name != "" {
			token = name
		}

		var (
			val any
			err error
		)
		if optional {
			val, err = i.GetOrDefault(token, nil)
		} else {
			val, err = i.Get(token)
		}
		if err != nil {
			return fmt.Errorf("di: field %s.%s: %w", t, field.Name, err)
		}
		if val == nil {
			continue
		}

		fv, err := convertArg(val, field.Type)
		if err != nil {
			return fmt.Errorf("di: field %s.%s: %w", t, field.Name, err)
		}
		v.Field(n).Set(fv)
	}
	return nil
}
