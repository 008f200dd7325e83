//go:build js_eval

package unitboot

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache ProgramCache
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	cfg := applyJSEvaluatorOptions(opts)
	return &jsEvaluator{cache: cfg.cache}
}

func (e *jsEvaluator) Evaluate(ctx GuardContext, expression string) (any, error) {
	if expression == "" {
		return nil, evaluationFailed(EngineJS, expression, ctx.Unit, errEmptyExpression)
	}
	ctx = ctx.withDefaults()
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, evaluationFailed(EngineJS, expression, ctx.Unit, err)
	}
	vm := goja.New()
	if err := injectGuardContext(vm, ctx); err != nil {
		return nil, evaluationFailed(EngineJS, expression, ctx.Unit, err)
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, evaluationFailed(EngineJS, expression, ctx.Unit, err)
	}
	return value.Export(), nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	key := EngineJS + "|" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", fmt.Sprintf("(function(){ return (%s); })()", expression), false)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func injectGuardContext(vm *goja.Runtime, ctx GuardContext) error {
	registry := ctx.Functions
	bindings := map[string]any{
		"settings": ctx.Settings,
		"unit":     ctx.Unit,
		"now":      ctx.Now,
		"call": func(name string, arguments ...any) (any, error) {
			return registry.Call(name, arguments...)
		},
	}
	for _, name := range registry.Names() {
		fn := name
		bindings[fn] = func(arguments ...any) (any, error) {
			return registry.Call(fn, arguments...)
		}
	}
	for name, value := range bindings {
		if err := vm.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

func jsEvaluatorAvailable() bool {
	return true
}
