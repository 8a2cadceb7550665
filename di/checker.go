package di

// CheckDeps 演练一次 inj.Get(token, visibility)：沿用相同的可见性、父级委托、
// multi 展开与循环检测，但不调用任何工厂，也不修改任何槽位。
//
// ignoreDeps 中的令牌视为已满足，不再向下检查。
// 用于在启动阶段验证装配，例如每个请求注入器中的守卫依赖是否可以满足。
func CheckDeps(inj *Injector, token any, visibility Visibility, ignoreDeps ...any) error {
	if !isValidToken(token) {
		return &NoProviderError{Token: token}
	}
	c := newChecker(inj.registry, ignoreDeps)
	return c.check(inj, inj.registry.Get(token), visibility, true, &pathTracer{})
}

// CheckResolved 检查一个不属于 inj 的提供者（对应 InstantiateResolved）
func CheckResolved(inj *Injector, rp *ResolvedProvider, ignoreDeps ...any) error {
	c := newChecker(inj.registry, ignoreDeps)
	tr := &pathTracer{}
	tr.push(rp.Key, inj)
	return c.checkProvider(inj, rp, tr)
}

type checker struct {
	ignore  map[int]struct{}
	checked map[traceItem]struct{}
}

func newChecker(reg *KeyRegistry, ignoreDeps []any) *checker {
	c := &checker{
		ignore:  make(map[int]struct{}, len(ignoreDeps)),
		checked: make(map[traceItem]struct{}),
	}
	for _, token := range ignoreDeps {
		if isValidToken(token) {
			c.ignore[reg.Get(token).ID] = struct{}{}
		}
	}
	return c
}

func (c *checker) check(i *Injector, key DualKey, vis Visibility, required bool, tr *pathTracer) error {
	if key.Token == InjectorToken {
		return nil
	}
	if _, ok := c.ignore[key.ID]; ok {
		return nil
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
			return &CyclicDependencyError{Token: key.Token, path: tr.render()}
		}

		if s := inj.lookup(key.ID); s != nil {
			inj.mu.Lock()
			ready, rp := s.ready, s.provider
			inj.mu.Unlock()
			if ready {
				return nil
			}

			// 同一次检查中已经验证过的节点不再重复展开
			item := traceItem{key: key, injector: inj}
			if _, ok := c.checked[item]; ok {
				return nil
			}
			if err := c.checkProvider(inj, rp, tr); err != nil {
				return err
			}
			c.checked[item] = struct{}{}
			return nil
		}

		if vis == VisibilitySelf {
			break
		}
		inj = inj.parent
	}

	if !required {
		return nil
	}
	return &NoProviderError{Token: key.Token, path: tr.render()}
}

func (c *checker) checkProvider(inj *Injector, rp *ResolvedProvider, tr *pathTracer) error {
	for _, f := range rp.Factories {
		for _, dep := range f.Dependencies {
			if err := c.check(inj, dep.Key, dep.Visibility, dep.Required, tr); err != nil {
				return err
			}
		}
	}
	return nil
}
