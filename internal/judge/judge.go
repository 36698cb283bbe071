// Package judge provides the model backends behind the semantic auditor.
// A Judge takes a prompt and returns free-form verdict text; parsing and
// fail-closed interpretation live in the semantic package.
package judge

import (
	"context"
	"errors"
	"fmt"
)

// Judge is a single model backend capable of evaluating a prompt.
type Judge interface {
	// Name identifies the backend in logs and audit records.
	Name() string

	// Evaluate sends the prompt under the given system instruction and
	// returns the raw response text.
	Evaluate(ctx context.Context, systemInstruction, prompt string) (string, error)
}

// QuotaError signals that the backend rejected the call for rate or quota
// reasons. Callers may retry these with backoff; all other errors are final.
type QuotaError struct {
	Backend string
	Detail  string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s quota exhausted: %s", e.Backend, e.Detail)
}

// IsQuota reports whether err is (or wraps) a QuotaError.
func IsQuota(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}
