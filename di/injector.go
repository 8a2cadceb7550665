package di

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Injector 是注入器树上的一个节点。
//
// 每个注入器独占自己的槽位表（按令牌 ID 索引），惰性实例化提供者并在本节点缓存单例；
// 本节点找不到的令牌委托给父注入器。子注入器只读取父注入器，从不写入父注入器的槽位。
//
// 解析是同步的：一次 Get 调用内的重入即为循环依赖。
// 多个 goroutine 可以同时调用 Get；两个调用同时实例化同一个单例时，先写入的实例胜出，
// 两个调用都返回它。
type Injector struct {
	parent   *Injector
	registry *KeyRegistry
	level    string
	depth    int

	mu    sync.Mutex
	slots map[int]*slot
}

// slot 保存一个令牌的状态：未实例化时持有 provider，实例化后持有 value。
type slot struct {
	provider *ResolvedProvider
	value    any
	ready    bool
}

type defaultValue struct {
	value any
}

// ResolveAndCreate 规范化 providers 并创建根注入器
//
// 示例：
//
//	reg := di.NewKeyRegistry()
//	inj, err := di.ResolveAndCreate(reg, []any{NewEngine, NewCar}, "App")
//	car, err := di.Inject[*Car](inj)
func ResolveAndCreate(reg *KeyRegistry, providers []any, level ...string) (*Injector, error) {
	resolved, err := Resolve(reg, providers)
	if err != nil {
		return nil, err
	}
	return CreateFromResolved(reg, resolved, level...), nil
}

// CreateFromResolved 用已解析的提供者创建根注入器
func CreateFromResolved(reg *KeyRegistry, resolved []*ResolvedProvider, level ...string) *Injector {
	return newInjector(reg, nil, resolved, firstLevel(level))
}

func newInjector(reg *KeyRegistry, parent *Injector, resolved []*ResolvedProvider, level string) *Injector {
	inj := &Injector{
		parent:   parent,
		registry: reg,
		level:    level,
		slots:    make(map[int]*slot, len(resolved)),
	}
	if parent != nil {
		inj.depth = parent.depth + 1
	}
	for _, rp := range resolved {
		inj.slots[rp.Key.ID] = &slot{provider: rp}
	}
	return inj
}

func firstLevel(level []string) string {
	if len(level) > 0 {
		return level[0]
	}
	return ""
}

func firstVisibility(visibility []Visibility) Visibility {
	if len(visibility) > 0 {
		return visibility[0]
	}
	return VisibilityDefault
}

// Parent 返回父注入器，根注入器返回 nil
func (i *Injector) Parent() *Injector {
	return i.parent
}

// Level 返回创建时指定的层级名称（例如 "App"、"Mod"、"Req"）
func (i *Injector) Level() string {
	return i.level
}

// Registry 返回注入器使用的令牌注册表
func (i *Injector) Registry() *KeyRegistry {
	return i.registry
}

func (i *Injector) label() string {
	if i.level != "" {
		return i.level
	}
	return fmt.Sprintf("L%d", i.depth)
}

// ResolveAndCreateChild 规范化 providers 并创建以当前注入器为父的子注入器
func (i *Injector) ResolveAndCreateChild(providers []any, level ...string) (*Injector, error) {
	resolved, err := Resolve(i.registry, providers)
	if err != nil {
		return nil, err
	}
	return i.CreateChildFromResolved(resolved, level...), nil
}

// CreateChildFromResolved 用已解析的提供者创建子注入器。
// 同一组 ResolvedProvider 可以被多个注入器复用（例如每个请求一个注入器）。
func (i *Injector) CreateChildFromResolved(resolved []*ResolvedProvider, level ...string) *Injector {
	return newInjector(i.registry, i, resolved, firstLevel(level))
}

// Get 解析 token 的值。
func (i *Injector) Get(token any, visibility ...Visibility) (any, error) {
	if !isValidToken(token) {
		return nil, &NoProviderError{Token: token}
	}
	key := i.registry.Get(token)
	return i.get(key, firstVisibility(visibility), &pathTracer{}, nil)
}

// GetOrDefault 与 Get 相同，但 token 本身在注入器链上不存在时返回 defaultValue。
// 传递依赖缺失、循环依赖和实例化失败仍然返回错误。
func (i *Injector) GetOrDefault(token any, defaultVal any, visibility ...Visibility) (any, error) {
	if !isValidToken(token) {
		return defaultVal, nil
	}
	key := i.registry.Get(token)
	return i.get(key, firstVisibility(visibility), &pathTracer{}, &defaultValue{value: defaultVal})
}

// Has 报告 token 能否在给定可见性下找到提供者（不实例化）
func (i *Injector) Has(token any, visibility ...Visibility) bool {
	if !isValidToken(token) {
		return false
	}
	if token == InjectorToken {
		return true
	}
	key := i.registry.Get(token)
	vis := firstVisibility(visibility)

	inj := i
	if vis == VisibilitySkipSelf {
		inj = i.parent
	}
	for inj != nil {
		if inj.lookup(key.ID) != nil {
			return true
		}
		if vis == VisibilitySelf {
			break
		}
		inj = inj.parent
	}
	return false
}

// InstantiateResolved 用本注入器的依赖实例化 rp，不写入槽位，每次调用都产生新实例。
// 用于实例化不属于本注入器的提供者，例如路由上携带的守卫。
func (i *Injector) InstantiateResolved(rp *ResolvedProvider) (any, error) {
	tr := &pathTracer{}
	tr.push(rp.Key, i)
	return i.instantiate(rp, tr)
}

// Fill 把本注入器中 tokens 对应的槽位复制到 child，不重新解析。
// 已实例化的槽位复制实例；未实例化的槽位复制提供者，由 child 自行实例化。
func (i *Injector) Fill(child *Injector, tokens ...any) error {
	for _, token := range tokens {
		if !isValidToken(token) {
			return &NoProviderError{Token: token}
		}
		key := i.registry.Get(token)
		s := i.lookup(key.ID)
		if s == nil {
			return &NoProviderError{Token: token}
		}

		i.mu.Lock()
		copied := &slot{provider: s.provider, value: s.value, ready: s.ready}
		i.mu.Unlock()

		child.mu.Lock()
		child.slots[key.ID] = copied
		child.mu.Unlock()
	}
	return nil
}

func (i *Injector) lookup(id int) *slot {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.slots[id]
}

// get 是核心解析算法
func (i *Injector) get(key DualKey, vis Visibility, tr *pathTracer, def *defaultValue) (any, error) {
	if key.Token == InjectorToken {
		return i, nil
	}

	pushed := 0
	defer func() { tr.pop(pushed) }()

	inj := i
	if vis == VisibilitySkipSelf {
		inj = i.parent
	}

	for inj != nil {
		pushed++
		if tr.push(key, inj) {
			return nil, &CyclicDependencyError{Token: key.Token, path: tr.render()}
		}

		if s := inj.lookup(key.ID); s != nil {
			return inj.resolveSlot(s, tr)
		}

		if vis == VisibilitySelf {
			break
		}
		inj = inj.parent
	}

	if def != nil {
		return def.value, nil
	}
	return nil, &NoProviderError{Token: key.Token, path: tr.render()}
}

func (i *Injector) resolveSlot(s *slot, tr *pathTracer) (any, error) {
	i.mu.Lock()
	if s.ready {
		value := s.value
		i.mu.Unlock()
		return value, nil
	}
	rp := s.provider
	i.mu.Unlock()

	value, err := i.instantiate(rp, tr)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if s.ready {
		return s.value, nil
	}
	s.value = value
	s.ready = true
	return value, nil
}

// instantiate 执行 rp 的工厂；multi 提供者返回按声明顺序排列的 []any
func (i *Injector) instantiate(rp *ResolvedProvider, tr *pathTracer) (any, error) {
	if !rp.Multi {
		return i.runFactory(rp.Key, rp.Factories[0], tr)
	}

	values := make([]any, 0, len(rp.Factories))
	for _, f := range rp.Factories {
		v, err := i.runFactory(rp.Key, f, tr)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (i *Injector) runFactory(key DualKey, f ResolvedFactory, tr *pathTracer) (any, error) {
	args := make([]any, len(f.Dependencies))
	for n, dep := range f.Dependencies {
		var def *defaultValue
		if !dep.Required {
			def = &defaultValue{}
		}
		v, err := i.get(dep.Key, dep.Visibility, tr, def)
		if err != nil {
			return nil, err
		}
		args[n] = v
	}

	value, err := callFactory(f.Fn, args)
	if err != nil {
		return nil, &InstantiationError{Token: key.Token, Cause: err, path: tr.render()}
	}
	return value, nil
}

// callFactory 调用工厂，把 panic 转换为错误
func callFactory(fn FactoryFunc, args []any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.WithStack(e)
			} else {
				err = errors.Errorf("panic: %v", r)
			}
		}
	}()

	value, err = fn(args)
	if err != nil {
		err = errors.WithStack(err)
	}
	return value, err
}
