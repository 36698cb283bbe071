// Package runtime orchestrates the full interception flow for one command:
// policy gate, audit pipeline, bounded execution, and audit sinks.
package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sentinelgate/sentinel/internal/decision"
	"github.com/sentinelgate/sentinel/internal/policy"
)

// Result is the terminal outcome for one intercepted command. ReturnCode is
// nil unless the command actually ran.
type Result struct {
	Allowed    bool   `json:"allowed"`
	RiskScore  int    `json:"risk_score"`
	Reason     string `json:"reason"`
	Status     string `json:"status,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	ReturnCode *int   `json:"returncode"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

// StatusReviewRequired marks results parked for human approval.
const StatusReviewRequired = "review_required"

// PolicyEngine is the rule gate consulted before any audit work.
type PolicyEngine interface {
	Evaluate(command string) policy.Result
}

// Auditor is the deterministic+semantic audit pipeline.
type Auditor interface {
	Audit(ctx context.Context, command string) decision.Decision
}

// ApprovalCreator records a command for human review and returns the request
// id a reviewer uses to approve or reject it.
type ApprovalCreator interface {
	Create(ctx context.Context, command, ruleName, reason string) (string, error)
}

// AuditSink receives every terminal result. Sink failures are reported to the
// diagnostic writer and never change the outcome.
type AuditSink interface {
	Record(ctx context.Context, command string, res Result) error
}

// Runtime wires the stages together.
type Runtime struct {
	policy    PolicyEngine
	auditor   Auditor
	approvals ApprovalCreator
	sinks     []AuditSink
	timeout   time.Duration
	diag      io.Writer
}

// New creates a runtime. approvals may be nil when no review store is wired
// (one-shot CLI runs); a review verdict then surfaces without a request id.
func New(pol PolicyEngine, aud Auditor, approvals ApprovalCreator, sinks []AuditSink, timeout time.Duration, diag io.Writer) *Runtime {
	if diag == nil {
		diag = os.Stderr
	}
	return &Runtime{
		policy:    pol,
		auditor:   aud,
		approvals: approvals,
		sinks:     sinks,
		timeout:   timeout,
		diag:      diag,
	}
}

// Run intercepts a single command. bypassPolicy skips both the policy gate
// and the auditor and is only set for commands a human already approved.
// Execution always uses the original raw string; the audit layers see the
// normalized form internally.
func (r *Runtime) Run(ctx context.Context, command string, bypassPolicy bool) (Result, error) {
	var d decision.Decision
	var decided bool

	if !bypassPolicy {
		pol := r.policy.Evaluate(command)
		switch pol.Action {
		case policy.ActionBlock:
			res := terminal(decision.Reject(
				fmt.Sprintf("Policy Violation: %s - %s", pol.RuleName, pol.Reason), 10))
			r.record(ctx, command, res)
			return res, nil

		case policy.ActionReview:
			res := terminal(decision.Reject(
				fmt.Sprintf("Review Required: %s - %s", pol.RuleName, pol.Reason), 5))
			res.Status = StatusReviewRequired
			if r.approvals != nil {
				id, err := r.approvals.Create(ctx, command, pol.RuleName, pol.Reason)
				if err != nil {
					// Losing the review record means the command could never
					// be approved; surface the failure instead of a silent
					// dead-end verdict.
					return Result{}, fmt.Errorf("record pending review: %w", err)
				}
				res.RequestID = id
			}
			r.record(ctx, command, res)
			return res, nil

		case policy.ActionAllow:
			d = decision.Allow("Allowed by policy: "+pol.RuleName, 0)
			decided = true
		}
	}

	if !decided {
		if bypassPolicy {
			d = decision.Allow("User Approved via HITL", 0)
		} else {
			d = r.auditor.Audit(ctx, command)
		}
	}

	if !d.Allowed {
		res := terminal(d)
		r.record(ctx, command, res)
		return res, nil
	}

	res := r.execute(ctx, command, d)
	r.record(ctx, command, res)
	return res, nil
}

// terminal shapes a decision into a non-executed result.
func terminal(d decision.Decision) Result {
	return Result{
		Allowed:   d.Allowed,
		RiskScore: d.RiskScore,
		Reason:    d.Reason,
	}
}

func (r *Runtime) record(ctx context.Context, command string, res Result) {
	for _, sink := range r.sinks {
		if err := sink.Record(ctx, command, res); err != nil {
			fmt.Fprintf(r.diag, "warning: audit sink failed: %v\n", err)
		}
	}
}
