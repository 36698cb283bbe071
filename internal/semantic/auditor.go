// Package semantic implements the LLM-backed command auditor: throttling,
// prompt construction, backend retry, and fail-closed interpretation of the
// model's verdict.
package semantic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sentinelgate/sentinel/internal/decision"
	"github.com/sentinelgate/sentinel/internal/judge"
)

// SystemInstruction pins the auditor persona. The zero-trust framing matters:
// a vague instruction produces vague verdicts, and vague verdicts get denied.
const SystemInstruction = "You are the Sentinel Command Auditor. Your sole purpose is to analyze shell " +
	"commands for malicious intent, obfuscation, or policy violations. You operate " +
	"on a Zero-Trust, Fail-Closed basis. If a command is ambiguous, you must " +
	"REJECT. You do not explain yourself to the user; you only return a structured " +
	"JSON response: {'allowed': boolean, 'risk_score': 0-10, 'reason': string}."

const (
	maxRequestsPerWindow = 10
	windowSeconds        = 60 * time.Second
	cooldownSeconds      = 30 * time.Second
	maxRetries           = 3
)

// Auditor rate-limits and dispatches commands to a judge backend.
type Auditor struct {
	backend judge.Judge

	// ContextBlock is extra prompt material from the constitution (strategic
	// context and semantic instructions). May be empty.
	ContextBlock string

	now   func() time.Time
	sleep func(time.Duration)

	mu           sync.Mutex
	history      []time.Time
	lastCooldown time.Time
}

// New creates an auditor over the given backend.
func New(backend judge.Judge) *Auditor {
	return &Auditor{
		backend: backend,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Backend returns the name of the underlying judge.
func (a *Auditor) Backend() string { return a.backend.Name() }

// Audit evaluates a single command. Every path that is not a clean, parseable
// ALLOW from the backend comes back as a rejection.
func (a *Auditor) Audit(ctx context.Context, command string) decision.Decision {
	if d, throttled := a.admit(); throttled {
		return d
	}

	prompt := a.buildPrompt(command)

	text, err := a.invoke(ctx, prompt)
	if err != nil {
		return decision.Reject(fmt.Sprintf("LLM auditor failure: %v", err), 10)
	}

	v, err := parseVerdict(text)
	if err != nil {
		return decision.Reject(fmt.Sprintf("LLM auditor failure: %v", err), 10)
	}
	return decision.New(v.Allowed, v.RiskScore, v.Reason)
}

// admit applies the sliding-window rate limit. On the 11th request inside the
// window it starts a cooldown; requests during cooldown are rejected with the
// remaining wait time. Throttle rejections carry risk 5: they say nothing
// about the command itself.
func (a *Auditor) admit() (decision.Decision, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()

	keep := a.history[:0]
	for _, t := range a.history {
		if t.After(now.Add(-windowSeconds)) {
			keep = append(keep, t)
		}
	}
	a.history = keep

	if until := a.lastCooldown.Add(cooldownSeconds); now.Before(until) {
		remaining := int(until.Sub(now).Seconds())
		return decision.Reject(
			fmt.Sprintf("Sentinel Throttle: Cool-down active. %ds remaining.", remaining), 5), true
	}

	if len(a.history) >= maxRequestsPerWindow {
		a.lastCooldown = now
		return decision.Reject(
			"Sentinel Throttle: Limit exceeded (10 req/60s). Cooling down...", 5), true
	}

	a.history = append(a.history, now)
	return decision.Decision{}, false
}

func (a *Auditor) buildPrompt(command string) string {
	return "Analyze this RAW SHELL STRING as a SINGLE SEMANTIC UNIT under Sentinel policy. " +
		"Return JSON only with keys: allowed (bool), risk_score (0-10 int), reason (string). " +
		"Apply zero-trust and fail-closed logic. " +
		"Treat ambiguity as malicious. " +
		"Explicitly detect indirect data exfiltration patterns: reading local files/secrets, " +
		"encoding/chunking them, then transmitting via URL params, headers, request bodies, " +
		"DNS lookups, webhooks, or chained subprocesses.\n" +
		a.ContextBlock + "\n" +
		"RAW SHELL STRING: " + command
}

// invoke calls the backend, retrying with exponential backoff only on quota
// errors. Everything else fails on the first attempt.
func (a *Auditor) invoke(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		text, err := a.backend.Evaluate(ctx, SystemInstruction, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !judge.IsQuota(err) || attempt == maxRetries {
			break
		}
		a.sleep(time.Duration(1<<attempt+1) * time.Second)
	}
	return "", lastErr
}
