package runtime

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sentinelgate/sentinel/internal/decision"
	"github.com/sentinelgate/sentinel/internal/policy"
)

type stubPolicy struct {
	result policy.Result
}

func (s *stubPolicy) Evaluate(string) policy.Result { return s.result }

type spyAuditor struct {
	calls    int
	decision decision.Decision
}

func (s *spyAuditor) Audit(_ context.Context, _ string) decision.Decision {
	s.calls++
	return s.decision
}

type stubApprovals struct {
	id  string
	err error
}

func (s *stubApprovals) Create(_ context.Context, _, _, _ string) (string, error) {
	return s.id, s.err
}

type memorySink struct {
	records []Result
	err     error
}

func (m *memorySink) Record(_ context.Context, _ string, res Result) error {
	m.records = append(m.records, res)
	return m.err
}

func allowAll() policy.Result {
	return policy.Result{Action: policy.ActionAllow, RuleName: "Allow All", Reason: "test"}
}

func defaultGate() policy.Result {
	return policy.Result{Action: policy.ActionBlock, RuleName: policy.DefaultRuleName, Reason: "No specific rule matched, applying default action"}
}

func newTestRuntime(pol policy.Result, aud *spyAuditor, approvals ApprovalCreator, sinks ...AuditSink) *Runtime {
	return New(&stubPolicy{result: pol}, aud, approvals, sinks, 5*time.Second, &bytes.Buffer{})
}

func TestRunPolicyBlock(t *testing.T) {
	aud := &spyAuditor{decision: decision.Allow("should not run", 0)}
	sink := &memorySink{}
	rt := newTestRuntime(policy.Result{Action: policy.ActionBlock, RuleName: "No Sudo", Reason: "sudo is blocked"}, aud, nil, sink)

	res, err := rt.Run(context.Background(), "sudo ls", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || res.RiskScore != 10 {
		t.Fatalf("got %+v", res)
	}
	if res.Reason != "Policy Violation: No Sudo - sudo is blocked" {
		t.Fatalf("got reason %q", res.Reason)
	}
	if res.ReturnCode != nil {
		t.Fatal("blocked command must not carry an exit code")
	}
	if aud.calls != 0 {
		t.Fatal("auditor must not run after a policy block")
	}
	if len(sink.records) != 1 {
		t.Fatalf("terminal result not recorded, got %d", len(sink.records))
	}
}

func TestRunPolicyReviewCreatesRequest(t *testing.T) {
	aud := &spyAuditor{}
	sink := &memorySink{}
	rt := newTestRuntime(
		policy.Result{Action: policy.ActionReview, RuleName: "Review Installs", Reason: "supply chain"},
		aud, &stubApprovals{id: "abc12345"}, sink)

	res, err := rt.Run(context.Background(), "pip install x", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || res.RiskScore != 5 {
		t.Fatalf("got %+v", res)
	}
	if res.Status != StatusReviewRequired || res.RequestID != "abc12345" {
		t.Fatalf("review metadata missing: %+v", res)
	}
	if !strings.HasPrefix(res.Reason, "Review Required: Review Installs") {
		t.Fatalf("got reason %q", res.Reason)
	}
	if aud.calls != 0 {
		t.Fatal("review verdict must not consult the auditor")
	}
}

func TestRunReviewStoreFailureAborts(t *testing.T) {
	rt := newTestRuntime(
		policy.Result{Action: policy.ActionReview, RuleName: "R", Reason: "r"},
		&spyAuditor{}, &stubApprovals{err: errors.New("disk full")})

	_, err := rt.Run(context.Background(), "pip install x", false)
	if err == nil || !strings.Contains(err.Error(), "record pending review") {
		t.Fatalf("expected abort on store failure, got %v", err)
	}
}

func TestRunPolicyAllowSkipsAuditor(t *testing.T) {
	aud := &spyAuditor{decision: decision.Reject("should not run", 10)}
	rt := newTestRuntime(allowAll(), aud, nil)

	res, err := rt.Run(context.Background(), "echo hi", false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Fatalf("got %+v", res)
	}
	if res.Reason != "Allowed by policy: Allow All" {
		t.Fatalf("got reason %q", res.Reason)
	}
	if aud.calls != 0 {
		t.Fatal("policy allow must bypass the auditor entirely")
	}
	if res.ReturnCode == nil || *res.ReturnCode != 0 {
		t.Fatalf("expected successful execution, got %+v", res)
	}
	if !strings.Contains(res.Stdout, "hi") {
		t.Fatalf("stdout not captured: %q", res.Stdout)
	}
}

func TestRunAuditorRejectIsTerminal(t *testing.T) {
	aud := &spyAuditor{decision: decision.Reject("looks hostile", 8)}
	rt := newTestRuntime(defaultGate(), aud, nil)

	// Policy default action block would stop everything; use an auditor-bound gate.
	rt.policy = &stubPolicy{result: policy.Result{Action: policy.Action("")}}

	res, err := rt.Run(context.Background(), "weird-binary", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || res.Reason != "looks hostile" || res.RiskScore != 8 {
		t.Fatalf("got %+v", res)
	}
	if aud.calls != 1 {
		t.Fatalf("auditor calls = %d", aud.calls)
	}
}

func TestRunBypassSkipsPolicyAndAuditor(t *testing.T) {
	aud := &spyAuditor{decision: decision.Reject("should not run", 10)}
	rt := newTestRuntime(policy.Result{Action: policy.ActionBlock, RuleName: "Block All", Reason: "no"}, aud, nil)

	res, err := rt.Run(context.Background(), "echo approved", true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed || res.Reason != "User Approved via HITL" {
		t.Fatalf("got %+v", res)
	}
	if aud.calls != 0 {
		t.Fatal("bypass must not consult the auditor")
	}
	if res.ReturnCode == nil || *res.ReturnCode != 0 {
		t.Fatalf("expected execution, got %+v", res)
	}
}

func TestRunShellOperatorsUseShell(t *testing.T) {
	rt := newTestRuntime(allowAll(), &spyAuditor{}, nil)

	res, err := rt.Run(context.Background(), "echo one; echo two", false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Stdout, "one") || !strings.Contains(res.Stdout, "two") {
		t.Fatalf("shell chain not executed as a unit: %q", res.Stdout)
	}
}

func TestRunNonZeroExitIsNormal(t *testing.T) {
	rt := newTestRuntime(allowAll(), &spyAuditor{}, nil)

	res, err := rt.Run(context.Background(), "sh -c 'exit 3'", false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Fatalf("non-zero exit must stay allowed, got %+v", res)
	}
	if res.ReturnCode == nil || *res.ReturnCode != 3 {
		t.Fatalf("got return code %v", res.ReturnCode)
	}
}

func TestRunExecutionTimeout(t *testing.T) {
	rt := New(&stubPolicy{result: allowAll()}, &spyAuditor{}, nil, nil, time.Second, &bytes.Buffer{})

	res, err := rt.Run(context.Background(), "sleep 5", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || res.RiskScore != 10 {
		t.Fatalf("timeout must reject, got %+v", res)
	}
	if !strings.Contains(res.Reason, "timed out after 1s") {
		t.Fatalf("got reason %q", res.Reason)
	}
	if res.Stderr != "Execution timeout" {
		t.Fatalf("got stderr %q", res.Stderr)
	}
	if res.ReturnCode != nil {
		t.Fatal("timed-out command must not carry an exit code")
	}
}

func TestRunExecutionTimeoutKeepsPartialStderr(t *testing.T) {
	rt := New(&stubPolicy{result: allowAll()}, &spyAuditor{}, nil, nil, time.Second, &bytes.Buffer{})

	res, err := rt.Run(context.Background(), "echo partial >&2; sleep 5", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || !strings.Contains(res.Reason, "timed out") {
		t.Fatalf("timeout must reject, got %+v", res)
	}
	if !strings.Contains(res.Stderr, "partial") {
		t.Fatalf("stderr written before the kill must survive, got %q", res.Stderr)
	}
}

func TestRunSpawnFailure(t *testing.T) {
	rt := newTestRuntime(allowAll(), &spyAuditor{}, nil)

	res, err := rt.Run(context.Background(), "definitely-not-a-real-binary-xyz", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || !strings.Contains(res.Reason, "Command execution failed") {
		t.Fatalf("got %+v", res)
	}
}

func TestRunSinkFailureIsIsolated(t *testing.T) {
	var diag bytes.Buffer
	broken := &memorySink{err: errors.New("sink down")}
	good := &memorySink{}
	rt := New(&stubPolicy{result: allowAll()}, &spyAuditor{}, nil,
		[]AuditSink{broken, good}, 5*time.Second, &diag)

	res, err := rt.Run(context.Background(), "echo ok", false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Fatalf("sink failure must not change the outcome: %+v", res)
	}
	if len(good.records) != 1 {
		t.Fatal("remaining sinks must still record")
	}
	if !strings.Contains(diag.String(), "audit sink failed") {
		t.Fatalf("sink failure not reported: %q", diag.String())
	}
}
