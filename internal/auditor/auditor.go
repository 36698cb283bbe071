// Package auditor chains the deterministic and semantic stages into a single
// command verdict: normalize first, hard-kill second, explicit allow third,
// and only then spend a model call.
package auditor

import (
	"context"

	"github.com/sentinelgate/sentinel/internal/decision"
	"github.com/sentinelgate/sentinel/internal/hardkill"
	"github.com/sentinelgate/sentinel/internal/normalize"
)

// SemanticAuditor is the LLM-backed stage. Satisfied by *semantic.Auditor.
type SemanticAuditor interface {
	Audit(ctx context.Context, command string) decision.Decision
}

// CommandAuditor runs the full audit pipeline over a raw command string.
type CommandAuditor struct {
	filter   *hardkill.Filter
	semantic SemanticAuditor
}

// New creates a command auditor. semantic may be nil; with no semantic stage
// available, anything that survives the deterministic checks is rejected.
func New(filter *hardkill.Filter, semantic SemanticAuditor) *CommandAuditor {
	return &CommandAuditor{filter: filter, semantic: semantic}
}

// Audit normalizes the command and walks it through the stages. The
// deterministic filter sees the normalized form so quoting and escape tricks
// cannot smuggle tokens past the blocklists.
func (a *CommandAuditor) Audit(ctx context.Context, command string) decision.Decision {
	normalized := normalize.Command(command)

	if d, rejected := a.filter.Apply(normalized); rejected {
		return d
	}

	if a.filter.AllowedInLockdown(normalized) {
		return decision.Allow("Command explicitly allowed by policy.", 0)
	}

	if a.semantic == nil {
		return decision.Reject("LLM auditor unavailable; fail-closed policy applied.", 9)
	}

	return a.semantic.Audit(ctx, normalized)
}

// Normalized exposes the canonical form of a command, used by callers that
// log or display what was actually audited.
func (a *CommandAuditor) Normalized(command string) string {
	return normalize.Command(command)
}
