package extension

import (
	"context"
	"fmt"
	"reflect"

	"github.com/gocrud/modkit/di"
)

// Stage1Hook 第一阶段：收集与准备。payload 会记录在所属组的 Stage1Result 中。
// isLastModule 表示当前管理器属于应用中最后一个完成导入的模块。
type Stage1Hook interface {
	Stage1(ctx context.Context, isLastModule bool) (any, error)
}

// Stage2Hook 第二阶段：所有模块的 stage1 都完成后执行，接收模块注入器
type Stage2Hook interface {
	Stage2(ctx context.Context, injectorPerModule *di.Injector) error
}

// Stage3Hook 第三阶段：所有模块的 stage2 都完成后执行
type Stage3Hook interface {
	Stage3(ctx context.Context) error
}

// Named 是可选接口，用于在日志和错误信息中标识扩展
type Named interface {
	Name() string
}

// Name 返回扩展的名称：实现了 Named 时使用 Name()，否则使用类型名
func Name(ext any) string {
	if n, ok := ext.(Named); ok {
		return n.Name()
	}
	return reflect.TypeOf(ext).String()
}

// validateExtension 验证扩展至少实现了一个阶段接口
func validateExtension(ext any) error {
	if ext == nil {
		return fmt.Errorf("extension: nil extension")
	}
	_, s1 := ext.(Stage1Hook)
	_, s2 := ext.(Stage2Hook)
	_, s3 := ext.(Stage3Hook)
	if !s1 && !s2 && !s3 {
		return fmt.Errorf("extension: '%s' does not implement any supported interfaces (Stage1Hook, Stage2Hook, Stage3Hook). "+
			"Check if your method signatures exactly match the interface definitions", Name(ext))
	}
	return nil
}

// member 组中的一个扩展。key 是扩展提供者令牌的 ID：同一模块内一个令牌只对应一个实例，
// Manager 用它而不是扩展的值判断两个成员是否是同一个扩展。
type member struct {
	key int
	ext any
}

func memberProvider(reg *di.KeyRegistry, group, token any) di.FactoryProvider {
	key := reg.Get(token).ID
	return di.FactoryProvider{
		Token:      group,
		UseFactory: func(ext any) member { return member{key: key, ext: ext} },
		Deps:       []any{token},
		Multi:      true,
	}
}

// GroupConfig 描述一个组与其他组的顺序约束，只影响排序
type GroupConfig struct {
	Group        any
	BeforeGroups []any
	AfterGroups  []any
}

// GroupConfigsToken 收集所有已注册扩展的 GroupConfig（multi）
var GroupConfigsToken = di.NewToken[[]GroupConfig]("EXTENSION_GROUP_CONFIGS")

// Registration 把一个扩展绑定到组
//
// Extension 可以是构造函数、di 提供者结构体，或者已经创建好的实例。
// Token 为空时，构造函数使用其返回类型作为令牌，实例使用一个新建的 InjectionToken。
//
// 示例：
//
//	extension.Registration{Extension: NewRoutesExtension, Group: web.RoutesGroup}
//	extension.Registration{
//		Extension:    NewPreRouterExtension,
//		Group:        web.PreRouterGroup,
//		AfterGroups:  []any{web.RoutesGroup},
//	}
type Registration struct {
	Extension    any
	Token        any
	Group        any
	BeforeGroups []any
	AfterGroups  []any
}

// Providers 把扩展注册转换为提供者列表：
//   - 扩展自身的提供者；
//   - 组令牌下的 multi 成员；
//   - 每个 BeforeGroups 组的派生令牌下的 multi 成员；
//   - GroupConfigsToken 下的 GroupConfig。
func Providers(reg *di.KeyRegistry, regs ...Registration) ([]any, error) {
	providers := make([]any, 0, len(regs)*3)

	for i, r := range regs {
		if r.Group == nil {
			return nil, fmt.Errorf("extension: registration %d has no group", i)
		}

		p, token, err := extensionProvider(r)
		if err != nil {
			return nil, fmt.Errorf("extension: registration %d: %w", i, err)
		}

		providers = append(providers,
			p,
			memberProvider(reg, r.Group, token),
		)
		for _, g := range r.BeforeGroups {
			providers = append(providers, memberProvider(reg, reg.BeforeToken(g), token))
		}
		providers = append(providers, di.ValueProvider{
			Token:    GroupConfigsToken,
			UseValue: GroupConfig{Group: r.Group, BeforeGroups: r.BeforeGroups, AfterGroups: r.AfterGroups},
			Multi:    true,
		})
	}

	return providers, nil
}

func extensionProvider(r Registration) (provider any, token any, err error) {
	switch e := r.Extension.(type) {
	case nil:
		return nil, nil, fmt.Errorf("extension is nil")

	case di.ClassProvider:
		if r.Token != nil {
			e.Token = r.Token
		}
		provider = e
	case di.FactoryProvider:
		if r.Token != nil {
			e.Token = r.Token
		}
		provider = e
	case di.ValueProvider:
		if r.Token != nil {
			e.Token = r.Token
		}
		provider = e

	default:
		if reflect.TypeOf(e).Kind() == reflect.Func {
			provider = di.ClassProvider{Token: r.Token, UseClass: e}
			break
		}
		if err := validateExtension(e); err != nil {
			return nil, nil, err
		}
		// 同一类型的多个实例各自需要独立的令牌
		t := r.Token
		if t == nil {
			t = di.NewToken[any](Name(e))
		}
		provider = di.ValueProvider{Token: t, UseValue: e}
	}

	token = di.ProviderToken(provider)
	if token == nil {
		return nil, nil, fmt.Errorf("invalid extension provider %T", r.Extension)
	}
	return provider, token, nil
}
