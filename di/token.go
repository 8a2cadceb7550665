package di

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
)

// InjectionToken 是一个唯一的符号令牌，用于区分相同类型的不同依赖。
//
// 使用场景：
//   - 需要注册多个相同类型但用途不同的实例（如多个数据库连接）
//   - 配置值（如字符串、整数等基本类型）
//
// 示例：
//
//	var DSN = di.NewToken[string]("dsn")
//
//	inj, _ := di.ResolveAndCreate(reg, []any{
//		di.ValueProvider{Token: DSN, UseValue: "postgres://..."},
//	})
//	dsn, _ := di.Get[string](inj, DSN)
type InjectionToken[T any] struct {
	name string
}

// NewToken 创建一个新的 Token。两次调用即使名称相同也得到不同的令牌。
func NewToken[T any](name string) *InjectionToken[T] {
	return &InjectionToken[T]{name: name}
}

// Name 返回 Token 的名称
func (t *InjectionToken[T]) Name() string {
	return t.name
}

// Type 返回 Token 承载的值类型
func (t *InjectionToken[T]) Type() reflect.Type {
	return TypeOf[T]()
}

// String 返回 Token 的字符串表示
func (t *InjectionToken[T]) String() string {
	return fmt.Sprintf("InjectionToken %s", t.name)
}

// TypeOf 获取类型 T 的 reflect.Type（泛型辅助函数）
//
// 返回值本身就是一个合法的令牌：构造函数 func(...) *Car 注册时，
// 其隐式令牌就是 di.TypeOf[*Car]()。
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// NamedKey 是"类型 + 名称"组成的令牌，用于同一类型的多个命名实例（例如多个 redis 客户端）。
// 它是可比较的值，相同的类型和名称总是得到相等的令牌。
type NamedKey struct {
	Type reflect.Type
	Name string
}

func (k NamedKey) String() string {
	return fmt.Sprintf("%v(%s)", k.Type, k.Name)
}

// Named 返回类型 T 下名为 name 的令牌
//
// 示例：
//
//	di.ValueProvider{Token: di.Named[*redis.Client]("cache"), UseValue: client}
//	cache, _ := di.Get[*redis.Client](inj, di.Named[*redis.Client]("cache"))
func Named[T any](name string) NamedKey {
	return NamedKey{Type: TypeOf[T](), Name: name}
}

// InjectorToken 是"当前注入器"令牌，Get 遇到它总是返回发起解析的注入器本身。
var InjectorToken = TypeOf[*Injector]()

// DualKey 把令牌和它在 KeyRegistry 中的整数 ID 绑在一起。
type DualKey struct {
	ID    int
	Token any
}

func (k DualKey) String() string {
	return tokenName(k.Token)
}

// KeyRegistry 把令牌映射为稳定递增的整数 ID。
// 注册表只增不减，生命周期与一次应用运行相同。
type KeyRegistry struct {
	mu      sync.Mutex
	keys    map[any]DualKey
	before  map[any]*beforeToken
	derived map[string]int
}

// NewKeyRegistry 创建一个空注册表
func NewKeyRegistry() *KeyRegistry {
	return &KeyRegistry{
		keys:    make(map[any]DualKey),
		before:  make(map[any]*beforeToken),
		derived: make(map[string]int),
	}
}

// Get 返回 token 的 DualKey；首次出现的令牌分配下一个 ID（从 0 开始）。
// token 必须是可比较的值，否则 panic。
func (r *KeyRegistry) Get(token any) DualKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key, ok := r.keys[token]; ok {
		return key
	}
	key := DualKey{ID: len(r.keys), Token: token}
	r.keys[token] = key
	return key
}

// Len 返回已登记的令牌数量
func (r *KeyRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// BeforeToken 返回代表"在 token 组之前运行"的派生令牌。
// 同一输入总是得到同一个派生令牌；字符串表示冲突时追加数字后缀。
func (r *KeyRegistry) BeforeToken(token any) any {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bt, ok := r.before[token]; ok {
		return bt
	}

	name := "BEFORE " + tokenName(token)
	if n := r.derived[name]; n > 0 {
		r.derived[name] = n + 1
		name += "-" + strconv.Itoa(n)
	} else {
		r.derived[name] = 1
	}

	bt := &beforeToken{of: token, name: name}
	r.before[token] = bt
	return bt
}

type beforeToken struct {
	of   any
	name string
}

func (t *beforeToken) String() string {
	return t.name
}

// Of 返回派生令牌所对应的原始组令牌
func (t *beforeToken) Of() any {
	return t.of
}

// isValidToken 检查 token 能否作为 map 键使用
func isValidToken(token any) bool {
	if token == nil {
		return false
	}
	return reflect.TypeOf(token).Comparable()
}

// tokenName 返回令牌的可读名称，用于错误信息和日志
func tokenName(token any) string {
	switch t := token.(type) {
	case nil:
		return "<nil>"
	case reflect.Type:
		return t.String()
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// TokenName 导出 tokenName，供扩展管理器等渲染诊断信息
func TokenName(token any) string {
	return tokenName(token)
}
