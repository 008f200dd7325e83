package unitboot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Guard engines.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// ErrNoEvaluator is returned when a guard names an engine that is not
// available in this build.
var ErrNoEvaluator = errors.New("unitboot: evaluator not configured")

// Guard is an expression that must evaluate to true against the merged
// settings before the runtime registry is built.
type Guard struct {
	Name   string
	Engine string
	Expr   string
}

// ParseGuard reads "[engine:]expression". The engine defaults to expr.
func ParseGuard(raw string) (Guard, error) {
	raw = strings.TrimSpace(raw)
	guard := Guard{Name: raw, Engine: EngineExpr, Expr: raw}
	if engine, expr, ok := strings.Cut(raw, ":"); ok {
		switch strings.ToLower(strings.TrimSpace(engine)) {
		case EngineExpr, EngineCEL, EngineJS:
			guard.Engine = strings.ToLower(strings.TrimSpace(engine))
			guard.Expr = strings.TrimSpace(expr)
		}
	}
	if guard.Expr == "" {
		return Guard{}, fmt.Errorf("unitboot: guard %q has no expression", raw)
	}
	return guard, nil
}

// GuardContext is the data a guard expression is evaluated against.
type GuardContext struct {
	Unit      string
	Settings  map[string]any
	Now       time.Time
	Functions *FunctionRegistry
}

func (ctx GuardContext) withDefaults() GuardContext {
	if ctx.Now.IsZero() {
		ctx.Now = time.Now()
	}
	if ctx.Settings == nil {
		ctx.Settings = map[string]any{}
	}
	if ctx.Functions == nil {
		ctx.Functions = NewFunctionRegistry(nil)
	}
	return ctx
}

// Evaluator evaluates guard expressions.
type Evaluator interface {
	Evaluate(ctx GuardContext, expression string) (any, error)
}

type namedFunction struct {
	name string
	fn   Function
}

// guardRunner evaluates guards with lazily created evaluators.
type guardRunner struct {
	cache      ProgramCache
	evaluators map[string]Evaluator
	logger     *slog.Logger
}

func (r *guardRunner) evaluator(engine string) Evaluator {
	if evaluator, ok := r.evaluators[engine]; ok {
		return evaluator
	}
	var evaluator Evaluator
	switch engine {
	case EngineExpr:
		evaluator = NewExprEvaluator(ExprWithProgramCache(r.cache))
	case EngineCEL:
		evaluator = NewCELEvaluator(CELWithProgramCache(r.cache))
	case EngineJS:
		evaluator = NewJSEvaluator(JSWithProgramCache(r.cache))
	}
	if r.evaluators == nil {
		r.evaluators = map[string]Evaluator{}
	}
	r.evaluators[engine] = evaluator
	return evaluator
}

func (r *guardRunner) run(ctx GuardContext, guards []Guard) error {
	ctx = ctx.withDefaults()
	for _, guard := range guards {
		engine := guard.Engine
		if engine == "" {
			engine = EngineExpr
		}
		evaluator := r.evaluator(engine)
		if evaluator == nil {
			return &GuardError{Guard: guard.Name, Engine: engine, Expr: guard.Expr, Err: ErrNoEvaluator}
		}

		ctx.Functions.resetReads()
		start := time.Now()
		result, err := evaluator.Evaluate(ctx, guard.Expr)
		read := ctx.Functions.KeysRead()
		err = attribute(evaluationFailed(engine, guard.Expr, ctx.Unit, err), guard, read)
		r.logger.Debug("settings guard evaluated",
			"guard", guard.Name,
			"engine", engine,
			"keys", read,
			"duration", time.Since(start),
			"result", result,
			"error", err,
		)
		if err != nil {
			return &GuardError{Guard: guard.Name, Engine: engine, Expr: guard.Expr, Keys: read, Err: err}
		}
		if ok, isBool := result.(bool); !isBool || !ok {
			return &GuardError{Guard: guard.Name, Engine: engine, Expr: guard.Expr, Keys: read, Result: result}
		}
	}
	return nil
}
