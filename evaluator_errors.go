package unitboot

import (
	"errors"
	"fmt"
	"strings"
)

var errEmptyExpression = errors.New("expression must not be empty")

// EvaluationError reports a guard expression that failed to compile or run.
// Keys lists the settings the guard read through setting() and has() before
// it failed, in the order they were first read.
type EvaluationError struct {
	Guard  string
	Engine string
	Expr   string
	Unit   string
	Keys   []string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "unitboot: %s guard", e.Engine)
	if e.Guard != "" && e.Guard != e.Expr {
		fmt.Fprintf(&b, " %q", e.Guard)
	}
	fmt.Fprintf(&b, " for unit %q %s", e.Unit, describeExpression(e.Expr))
	if len(e.Keys) > 0 {
		fmt.Fprintf(&b, " after reading %s", strings.Join(e.Keys, ", "))
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

// evaluationFailed wraps err as an *EvaluationError. An error that already
// is one only has its blank fields filled.
func evaluationFailed(engine, expr, unit string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Unit: unit, Err: err}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	if evalErr.Unit == "" {
		evalErr.Unit = unit
	}
	return evalErr
}

// attribute names the guard on err and records the keys it read.
func attribute(err error, guard Guard, read []string) error {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Guard == "" {
			evalErr.Guard = guard.Name
		}
		if len(evalErr.Keys) == 0 && len(read) > 0 {
			evalErr.Keys = append([]string(nil), read...)
		}
	}
	return err
}
