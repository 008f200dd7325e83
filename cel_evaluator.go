package unitboot

import (
	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celEvaluator struct {
	cache ProgramCache
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Guards see
// settings, unit and now, plus setting(key) and call(name, ...) bound to the
// context's function registry.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx GuardContext, expression string) (any, error) {
	if expression == "" {
		return nil, evaluationFailed(EngineCEL, expression, ctx.Unit, errEmptyExpression)
	}
	ctx = ctx.withDefaults()
	program, err := e.loadOrCompile(expression, ctx.Functions)
	if err != nil {
		return nil, evaluationFailed(EngineCEL, expression, ctx.Unit, err)
	}
	out, _, err := program.program.Eval(map[string]any{
		"settings": ctx.Settings,
		"unit":     ctx.Unit,
		"now":      ctx.Now,
	})
	if err != nil {
		return nil, evaluationFailed(EngineCEL, expression, ctx.Unit, err)
	}
	return out.Value(), nil
}

// Function bindings are fixed when the environment is built, so the cache key
// carries the registry identity.
func (e *celEvaluator) loadOrCompile(expression string, registry *FunctionRegistry) (*celProgram, error) {
	key := EngineCEL + "|" + registry.identity() + "|" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := celEnvironment(registry)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{env: env, program: prg}
	if e.cache != nil {
		e.cache.Set(key, bundle)
	}
	return bundle, nil
}

func celEnvironment(registry *FunctionRegistry) (*celgo.Env, error) {
	return celgo.NewEnv(
		celgo.Variable("settings", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("unit", celgo.StringType),
		celgo.Variable("now", celgo.TimestampType),
		celgo.Function("setting",
			celgo.Overload("setting_string", []*celgo.Type{celgo.StringType}, celgo.DynType,
				celgo.UnaryBinding(func(name ref.Val) ref.Val {
					return celCall(registry, []ref.Val{types.String("setting"), name})
				}),
			),
		),
		celgo.Function("call",
			celgo.Overload("call_string", []*celgo.Type{celgo.StringType}, celgo.DynType,
				celgo.UnaryBinding(func(name ref.Val) ref.Val {
					return celCall(registry, []ref.Val{name})
				}),
			),
			celgo.Overload("call_string_dyn", []*celgo.Type{celgo.StringType, celgo.DynType}, celgo.DynType,
				celgo.BinaryBinding(func(name, arg ref.Val) ref.Val {
					return celCall(registry, []ref.Val{name, arg})
				}),
			),
			celgo.Overload("call_string_dyn_dyn", []*celgo.Type{celgo.StringType, celgo.DynType, celgo.DynType}, celgo.DynType,
				celgo.FunctionBinding(func(values ...ref.Val) ref.Val {
					return celCall(registry, values)
				}),
			),
		),
	)
}

func celCall(registry *FunctionRegistry, values []ref.Val) ref.Val {
	if registry == nil {
		return types.NewErr("unitboot: function registry not configured")
	}
	if len(values) == 0 {
		return types.NewErr("unitboot: call requires function name")
	}
	name, ok := values[0].Value().(string)
	if !ok {
		return types.NewErr("unitboot: call name must be string")
	}
	args := make([]any, 0, len(values)-1)
	for _, val := range values[1:] {
		args = append(args, val.Value())
	}
	result, err := registry.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
