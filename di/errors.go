package di

import (
	"fmt"
	"reflect"
)

// Coder 由本包所有错误实现。Code 是稳定的错误代码，Path 是可读的解析路径。
type Coder interface {
	error
	Code() string
	Path() string
}

const (
	CodeNoProvider          = "noProvider"
	CodeCyclicDependency    = "cyclicDependency"
	CodeInstantiation       = "instantiationError"
	CodeInvalidProvider     = "invalidProvider"
	CodeMixedMultiProviders = "mixMultiProvidersWithRegularProviders"
	CodeNoAnnotation        = "noAnnotation"
)

func withPath(path string) string {
	if path == "" {
		return ""
	}
	return " (" + path + ")"
}

// NoProviderError 注入器链上找不到必需的令牌
type NoProviderError struct {
	Token any
	path  string
}

func (e *NoProviderError) Error() string {
	return fmt.Sprintf("No provider for %s!%s", tokenName(e.Token), withPath(e.path))
}

func (e *NoProviderError) Code() string { return CodeNoProvider }
func (e *NoProviderError) Path() string { return e.path }

// CyclicDependencyError 同步解析时重新进入了同一个 (token, injector) 对
type CyclicDependencyError struct {
	Token any
	path  string
}

func (e *CyclicDependencyError) Error() string {
	return "Cannot instantiate cyclic dependency!" + withPath(e.path)
}

func (e *CyclicDependencyError) Code() string { return CodeCyclicDependency }
func (e *CyclicDependencyError) Path() string { return e.path }

// InstantiationError 工厂或构造函数失败。Cause 保留原始错误（带调用栈）。
type InstantiationError struct {
	Token any
	Cause error
	path  string
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("%v: error during instantiation of %s!%s", e.Cause, tokenName(e.Token), withPath(e.path))
}

func (e *InstantiationError) Unwrap() error { return e.Cause }
func (e *InstantiationError) Code() string  { return CodeInstantiation }
func (e *InstantiationError) Path() string  { return e.path }

// InvalidProviderError 提供者列表项既不是已知的提供者结构，也不是构造函数
type InvalidProviderError struct {
	Provider any
	Index    int
	Reason   string
}

func (e *InvalidProviderError) Error() string {
	msg := fmt.Sprintf("Invalid provider at index %d - only ValueProvider, ClassProvider, FactoryProvider, TokenProvider and constructor functions are allowed, got: %T", e.Index, e.Provider)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *InvalidProviderError) Code() string { return CodeInvalidProvider }
func (e *InvalidProviderError) Path() string { return "" }

// MixedProviderKindError 同一令牌既有 multi 又有非 multi 的声明
type MixedProviderKindError struct {
	Token any
}

func (e *MixedProviderKindError) Error() string {
	return fmt.Sprintf("Cannot mix multi providers and regular providers for %s", tokenName(e.Token))
}

func (e *MixedProviderKindError) Code() string { return CodeMixedMultiProviders }
func (e *MixedProviderKindError) Path() string { return "" }

// NoAnnotationError 构造函数或工厂的参数无法确定依赖令牌
type NoAnnotationError struct {
	Token     any
	Param     int
	ParamType reflect.Type
}

func (e *NoAnnotationError) Error() string {
	return fmt.Sprintf("Cannot resolve all parameters for %s: parameter %d of type %v cannot be used as a token. "+
		"Declare Deps explicitly.", tokenName(e.Token), e.Param, e.ParamType)
}

func (e *NoAnnotationError) Code() string { return CodeNoAnnotation }
func (e *NoAnnotationError) Path() string { return "" }
