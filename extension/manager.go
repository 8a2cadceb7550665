package extension

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

// CodeCircularDeps 是 CircularDepsError 的错误代码
const CodeCircularDeps = "circularDepsBetweenExtensions"

// ManagerToken 是模块注入器中扩展管理器的令牌
var ManagerToken = di.TypeOf[*Manager]()

// Result 一个扩展在 stage1 中返回的数据
type Result struct {
	Extension any
	Name      string
	Payload   any
}

// Stage1Result 一个组的 stage1 聚合结果，按扩展执行顺序排列
type Stage1Result struct {
	Group   any
	Results []Result
}

// Payloads 返回所有扩展的 payload
func (r *Stage1Result) Payloads() []any {
	out := make([]any, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Payload
	}
	return out
}

// CircularDepsError 扩展的 stage1 直接或间接等待了一个仍在初始化中的组
type CircularDepsError struct {
	// Chain 形如 "GroupA (ExtX)"，最后一项是被重新进入的组
	Chain []string
}

func (e *CircularDepsError) Error() string {
	return "Detected circular dependencies between extensions: " + e.Path()
}

func (e *CircularDepsError) Code() string { return CodeCircularDeps }
func (e *CircularDepsError) Path() string { return strings.Join(e.Chain, " -> ") }

// Option 配置 Manager
type Option func(m *Manager)

// WithLastModule 标记管理器属于最后一个模块，传给每个 Stage1Hook
func WithLastModule(last bool) Option {
	return func(m *Manager) {
		m.lastModule = last
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

type frame struct {
	group     any
	extension string
}

// Manager 按组执行扩展的三个阶段。
//
// 状态按组维护：未开始 -> 运行中 -> 已完成。已完成的组直接返回缓存的结果；
// 运行中的组被再次请求即为扩展之间的循环依赖。每个扩展实例在每个阶段最多执行一次。
//
// Manager 在启动时由单个 goroutine 驱动，不支持并发调用。
type Manager struct {
	inj        *di.Injector
	reg        *di.KeyRegistry
	configs    []GroupConfig
	lastModule bool
	logger     logging.Logger

	finished     map[int]*Stage1Result
	initializing map[int]struct{}
	stack        []frame

	// 按 stage1 完成顺序记录扩展，stage2/stage3 按此顺序执行。
	// 以下状态都以扩展提供者令牌的 ID 为键。
	executed []member
	payloads map[int]any
	running  map[int]struct{}
	stage2   map[int]struct{}
	stage3   map[int]struct{}
}

// NewManager 创建扩展管理器。扩展和组从 inj 中解析。
func NewManager(inj *di.Injector, configs []GroupConfig, opts ...Option) *Manager {
	m := &Manager{
		inj:          inj,
		reg:          inj.Registry(),
		configs:      configs,
		logger:       logging.NewNopLogger(),
		finished:     make(map[int]*Stage1Result),
		initializing: make(map[int]struct{}),
		payloads:     make(map[int]any),
		running:      make(map[int]struct{}),
		stage2:       make(map[int]struct{}),
		stage3:       make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ManagerProvider 返回在模块注入器中创建 Manager 的提供者
func ManagerProvider(opts ...Option) di.FactoryProvider {
	return di.FactoryProvider{
		Token: ManagerToken,
		UseFactory: func(inj *di.Injector, configs []GroupConfig) *Manager {
			return NewManager(inj, configs, opts...)
		},
		Deps: []any{di.InjectorToken, di.Optional(GroupConfigsToken)},
	}
}

// Groups 返回排序后的组
func (m *Manager) Groups() ([]any, error) {
	return SortGroups(m.configs)
}

// RunStage1 按排序后的顺序对所有组执行 stage1
func (m *Manager) RunStage1(ctx context.Context) ([]*Stage1Result, error) {
	groups, err := m.Groups()
	if err != nil {
		return nil, err
	}

	results := make([]*Stage1Result, 0, len(groups))
	for _, g := range groups {
		r, err := m.Stage1(ctx, g)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// Stage1 执行一个组的 stage1 并返回聚合结果。重复调用返回缓存的结果。
//
// 扩展可以在自己的 Stage1 中调用 Stage1 等待另一个组，例如：
//
//	func (e *PreRouterExtension) Stage1(ctx context.Context, _ bool) (any, error) {
//		routes, err := e.mgr.Stage1(ctx, RoutesGroup)
//		...
//	}
func (m *Manager) Stage1(ctx context.Context, group any) (*Stage1Result, error) {
	key := m.reg.Get(group)
	if r, ok := m.finished[key.ID]; ok {
		return r, nil
	}
	if _, ok := m.initializing[key.ID]; ok {
		return nil, m.circularError(group)
	}

	m.initializing[key.ID] = struct{}{}
	m.stack = append(m.stack, frame{group: group})
	defer func() {
		delete(m.initializing, key.ID)
		m.stack = m.stack[:len(m.stack)-1]
	}()

	m.logger.Debug("extension group stage1 started", logging.Field{Key: "group", Value: di.TokenName(group)})

	// 声明了 AfterGroups 的组先等待那些组完成
	for _, c := range m.configs {
		if c.Group != group {
			continue
		}
		for _, g := range c.AfterGroups {
			if _, err := m.Stage1(ctx, g); err != nil {
				return nil, err
			}
		}
	}

	// 声明在本组之前运行的扩展
	before, err := m.extensions(m.reg.BeforeToken(group))
	if err != nil {
		return nil, err
	}
	for _, ext := range before {
		if _, err := m.runStage1(ctx, ext); err != nil {
			return nil, err
		}
	}

	exts, err := m.extensions(group)
	if err != nil {
		return nil, err
	}
	result := &Stage1Result{Group: group, Results: make([]Result, 0, len(exts))}
	for _, e := range exts {
		payload, err := m.runStage1(ctx, e)
		if err != nil {
			return nil, err
		}
		result.Results = append(result.Results, Result{Extension: e.ext, Name: Name(e.ext), Payload: payload})
	}

	m.finished[key.ID] = result
	m.logger.Debug("extension group stage1 finished",
		logging.Field{Key: "group", Value: di.TokenName(group)},
		logging.Field{Key: "extensions", Value: len(exts)})
	return result, nil
}

// extensions 解析组令牌下的扩展；组不存在时返回空
func (m *Manager) extensions(group any) ([]member, error) {
	v, err := m.inj.GetOrDefault(group, nil)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("extension: group %s must be provided as multi, got %T", di.TokenName(group), v)
	}
	members := make([]member, 0, len(items))
	for _, item := range items {
		e, ok := item.(member)
		if !ok {
			return nil, fmt.Errorf("extension: group %s has a member %T that was not registered through extension.Providers", di.TokenName(group), item)
		}
		if err := validateExtension(e.ext); err != nil {
			return nil, err
		}
		members = append(members, e)
	}
	return members, nil
}

func (m *Manager) runStage1(ctx context.Context, e member) (any, error) {
	if payload, ok := m.payloads[e.key]; ok {
		return payload, nil
	}
	if _, ok := m.running[e.key]; ok {
		return nil, m.circularError(nil)
	}

	m.running[e.key] = struct{}{}
	top := &m.stack[len(m.stack)-1]
	prev := top.extension
	top.extension = Name(e.ext)
	defer func() {
		delete(m.running, e.key)
		m.stack[len(m.stack)-1].extension = prev
	}()

	var payload any
	if h, ok := e.ext.(Stage1Hook); ok {
		var err error
		if payload, err = h.Stage1(ctx, m.lastModule); err != nil {
			return nil, err
		}
	}

	m.payloads[e.key] = payload
	m.executed = append(m.executed, e)
	return payload, nil
}

// circularError 根据调用栈生成错误；group 为空时表示扩展本身被重新进入
func (m *Manager) circularError(group any) error {
	start := 0
	if group != nil {
		for i, f := range m.stack {
			if f.group == group {
				start = i
				break
			}
		}
	}

	chain := make([]string, 0, len(m.stack)-start+1)
	for _, f := range m.stack[start:] {
		entry := di.TokenName(f.group)
		if f.extension != "" {
			entry += " (" + f.extension + ")"
		}
		chain = append(chain, entry)
	}
	if group != nil {
		chain = append(chain, di.TokenName(group))
	}
	return &CircularDepsError{Chain: chain}
}

// Stage2 对所有完成 stage1 的扩展执行 stage2，每个扩展只执行一次
func (m *Manager) Stage2(ctx context.Context, injectorPerModule *di.Injector) error {
	for _, e := range m.executed {
		if _, ok := m.stage2[e.key]; ok {
			continue
		}
		m.stage2[e.key] = struct{}{}
		if h, ok := e.ext.(Stage2Hook); ok {
			if err := h.Stage2(ctx, injectorPerModule); err != nil {
				return fmt.Errorf("extension %s stage2: %w", Name(e.ext), err)
			}
		}
	}
	return nil
}

// Stage3 对所有完成 stage1 的扩展执行 stage3，每个扩展只执行一次
func (m *Manager) Stage3(ctx context.Context) error {
	for _, e := range m.executed {
		if _, ok := m.stage3[e.key]; ok {
			continue
		}
		m.stage3[e.key] = struct{}{}
		if h, ok := e.ext.(Stage3Hook); ok {
			if err := h.Stage3(ctx); err != nil {
				return fmt.Errorf("extension %s stage3: %w", Name(e.ext), err)
			}
		}
	}
	return nil
}
