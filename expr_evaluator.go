package unitboot

import (
	"strings"
	"time"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// exprEvaluator executes guard expressions using github.com/expr-lang/expr.
type exprEvaluator struct {
	cache ProgramCache
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Evaluate compiles expression against the guard environment and runs it.
func (e *exprEvaluator) Evaluate(ctx GuardContext, expression string) (any, error) {
	if expression == "" {
		return nil, evaluationFailed(EngineExpr, expression, ctx.Unit, errEmptyExpression)
	}
	ctx = ctx.withDefaults()
	names := ctx.Functions.Names()
	program, err := e.loadOrCompile(expression, names)
	if err != nil {
		return nil, evaluationFailed(EngineExpr, expression, ctx.Unit, err)
	}
	result, err := exprlang.Run(program, exprEnvironment(ctx, names))
	if err != nil {
		return nil, evaluationFailed(EngineExpr, expression, ctx.Unit, err)
	}
	return result, nil
}

// Programs only depend on function names; the functions themselves are
// supplied through the environment on every run.
func (e *exprEvaluator) loadOrCompile(expression string, names []string) (*exprvm.Program, error) {
	key := EngineExpr + "|" + strings.Join(names, ",") + "|" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(exprPrototype(names)),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func exprPrototype(names []string) map[string]any {
	env := map[string]any{
		"settings": map[string]any{},
		"unit":     "",
		"now":      time.Time{},
		"call": func(string, ...any) (any, error) {
			return nil, nil
		},
	}
	for _, name := range names {
		env[name] = func(...any) (any, error) {
			return nil, nil
		}
	}
	return env
}

func exprEnvironment(ctx GuardContext, names []string) map[string]any {
	registry := ctx.Functions
	env := map[string]any{
		"settings": ctx.Settings,
		"unit":     ctx.Unit,
		"now":      ctx.Now,
		"call": func(name string, arguments ...any) (any, error) {
			return registry.Call(name, arguments...)
		},
	}
	for _, name := range names {
		fn := name
		env[fn] = func(arguments ...any) (any, error) {
			return registry.Call(fn, arguments...)
		}
	}
	return env
}
