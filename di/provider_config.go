package di

// Provider 是提供者声明的封闭联合类型，只有本包中的四种结构体实现它。
//
// 提供者列表的类型是 []any：除了这四种结构体，列表项也可以是一个裸构造函数，
// 它等价于 ClassProvider{UseClass: fn}，令牌为构造函数第一个返回值的类型。
type Provider interface {
	providerToken() any
	isMulti() bool
}

// ValueProvider 值提供者，直接使用静态值
//
// 示例：
//
//	di.ValueProvider{Token: DSN, UseValue: "postgres://..."}
type ValueProvider struct {
	Token    any
	UseValue any
	Multi    bool
}

// ClassProvider 类提供者，通过构造函数实例化一个可注入类型
//
// UseClass 必须是函数，返回 T 或 (T, error)。Token 为空时使用 T 作为令牌。
// Deps 为空时，依赖清单由构造函数参数类型推断。
//
// 示例：
//
//	di.ClassProvider{UseClass: NewCar}
//	di.ClassProvider{Token: di.TypeOf[Vehicle](), UseClass: NewCar, Deps: []any{di.SkipSelf(di.TypeOf[*Engine]())}}
type ClassProvider struct {
	Token    any
	UseClass any
	Deps     []any
	Multi    bool
}

// FactoryProvider 工厂提供者，调用函数产生值。必须显式给出 Token。
//
// 示例：
//
//	di.FactoryProvider{
//		Token:      di.TypeOf[*redis.Client](),
//		UseFactory: func(cfg config.Configuration) (*redis.Client, error) { ... },
//	}
type FactoryProvider struct {
	Token      any
	UseFactory any
	Deps       []any
	Multi      bool
}

// TokenProvider 别名提供者，以 Token 重新导出 UseToken 的值
type TokenProvider struct {
	Token    any
	UseToken any
	Multi    bool
}

func (p ValueProvider) providerToken() any   { return p.Token }
func (p ClassProvider) providerToken() any   { return p.Token }
func (p FactoryProvider) providerToken() any { return p.Token }
func (p TokenProvider) providerToken() any   { return p.Token }

func (p ValueProvider) isMulti() bool   { return p.Multi }
func (p ClassProvider) isMulti() bool   { return p.Multi }
func (p FactoryProvider) isMulti() bool { return p.Multi }
func (p TokenProvider) isMulti() bool   { return p.Multi }

// ProviderToken 返回提供者声明最终使用的令牌（ClassProvider 会推断隐式令牌）。
// 无法识别的声明返回 nil。
func ProviderToken(p any) any {
	normalized, err := normalize(p, -1)
	if err != nil {
		return nil
	}
	return normalized.providerToken()
}
