package ambient

import (
	"errors"
	"fmt"
	"strings"
)

// GuardError captures engine metadata alongside the originating error.
type GuardError struct {
	Engine  string
	Expr    string
	ScopeID string
	Err     error
}

func (e *GuardError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("ambient: %s guard %s scope=%s: %v", e.Engine, describeExpression(e.Expr), e.ScopeID, e.Err)
}

func (e *GuardError) Unwrap() error {
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

func wrapGuardError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var guardErr *GuardError
	if errors.As(err, &guardErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "ambient:") {
		return err
	}
	return fmt.Errorf("ambient: %s guard: %w", engine, err)
}

func wrapGuardEvaluationError(engine, expr, scopeID string, err error) error {
	if err == nil {
		return nil
	}

	var guardErr *GuardError
	if errors.As(err, &guardErr) {
		if guardErr.Engine == "" {
			guardErr.Engine = engine
		}
		if guardErr.Expr == "" {
			guardErr.Expr = expr
		}
		if guardErr.ScopeID == "" {
			guardErr.ScopeID = scopeID
		}
		return guardErr
	}

	return &GuardError{
		Engine:  engine,
		Expr:    expr,
		ScopeID: scopeID,
		Err:     err,
	}
}
