package unitboot

import (
	"errors"
	"strings"
	"testing"
)

func TestEvaluationFailedCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := evaluationFailed("expr", "flag && missing", "orders", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != "expr" || evalErr.Expr != "flag && missing" || evalErr.Unit != "orders" {
		t.Fatalf("unexpected metadata %+v", evalErr)
	}
	if !errors.Is(evalErr.Err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
	if evaluationFailed("expr", "x", "orders", nil) != nil {
		t.Fatalf("nil errors must stay nil")
	}
}

func TestEvaluationFailedFillsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{Engine: "expr", Err: base}

	err := evaluationFailed("cel", "rule", "audit", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "rule" || existing.Unit != "audit" {
		t.Fatalf("blank fields should be filled, got %+v", existing)
	}
}

func TestAttributeNamesGuardAndKeys(t *testing.T) {
	read := []string{"hibernate.connection.url", "hibernate.pool_size"}
	err := attribute(evaluationFailed(EngineCEL, `setting("x") > 1`, "orders", errors.New("no such overload")),
		Guard{Name: "pool-size", Engine: EngineCEL, Expr: `setting("x") > 1`}, read)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Guard != "pool-size" {
		t.Fatalf("expected guard name, got %q", evalErr.Guard)
	}
	read[0] = "mutated"
	if len(evalErr.Keys) != 2 || evalErr.Keys[0] != "hibernate.connection.url" {
		t.Fatalf("keys must be copied, got %v", evalErr.Keys)
	}
	msg := err.Error()
	for _, want := range []string{`cel guard "pool-size"`, `unit "orders"`, "after reading hibernate.connection.url, hibernate.pool_size", "no such overload"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}

func TestEvaluationErrorOmitsGuardMatchingExpression(t *testing.T) {
	err := &EvaluationError{Guard: "true", Engine: EngineExpr, Expr: "true", Unit: "orders", Err: errEmptyExpression}
	if strings.Contains(err.Error(), `guard "true"`) {
		t.Fatalf("guard named after its expression should not repeat, got %q", err.Error())
	}
}
