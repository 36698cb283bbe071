package judge

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// HeuristicJudge is an offline fallback backend. It scores the command with
// pattern rules and emits the same JSON verdict shape a model would, so the
// semantic parser treats both backends identically.
type HeuristicJudge struct {
	rules []heuristicRule
}

type heuristicRule struct {
	reason string
	risk   int
	match  func(command string) bool
}

// NewHeuristicJudge creates a heuristic judge with the built-in rule set.
func NewHeuristicJudge() *HeuristicJudge {
	j := &HeuristicJudge{}
	j.rules = buildHeuristicRules()
	return j
}

func (j *HeuristicJudge) Name() string { return "heuristic" }

// promptCommandMarker locates the audited command inside the auditor prompt.
const promptCommandMarker = "RAW SHELL STRING: "

// Evaluate scores the command and returns a JSON verdict. The highest risk
// among matching rules wins; no match yields a low-risk allow.
func (j *HeuristicJudge) Evaluate(_ context.Context, _ string, prompt string) (string, error) {
	command := prompt
	if idx := strings.LastIndex(prompt, promptCommandMarker); idx >= 0 {
		command = prompt[idx+len(promptCommandMarker):]
	}

	risk := 0
	reason := "No heuristic risk signals detected."
	for _, r := range j.rules {
		if r.match(command) && r.risk > risk {
			risk = r.risk
			reason = r.reason
		}
	}

	verdict := map[string]any{
		"allowed":    risk < 5,
		"risk_score": risk,
		"reason":     reason,
	}
	out, err := json.Marshal(verdict)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func buildHeuristicRules() []heuristicRule {
	return []heuristicRule{
		{
			reason: "Command contains instruction override language targeting an AI agent.",
			risk:   9,
			match: func(cmd string) bool {
				return matchesAny(cmd, instructionOverridePatterns)
			},
		},
		{
			reason: "Command attempts to disable or bypass security controls.",
			risk:   10,
			match: func(cmd string) bool {
				return matchesAny(cmd, disableSecurityPatterns)
			},
		},
		{
			reason: "Command carries a long base64 payload that may hide its intent.",
			risk:   7,
			match: func(cmd string) bool {
				return base64PayloadPattern.MatchString(cmd)
			},
		},
		{
			reason: "Command contains hex escape sequences that may hide its intent.",
			risk:   6,
			match: func(cmd string) bool {
				return hexEscapePattern.MatchString(cmd)
			},
		},
		{
			reason: "Command uses eval/exec for dynamic code execution.",
			risk:   7,
			match: func(cmd string) bool {
				return evalRiskPattern.MatchString(cmd)
			},
		},
		{
			reason: "Command archives local data and pushes it to an external destination.",
			risk:   9,
			match:  matchesBulkExfil,
		},
		{
			reason: "Command contains what appears to be an inline API key or secret token.",
			risk:   6,
			match: func(cmd string) bool {
				return secretsPattern.MatchString(cmd)
			},
		},
		{
			reason: "Command reads credential material and pipes it onward.",
			risk:   8,
			match: func(cmd string) bool {
				lower := strings.ToLower(cmd)
				reads := strings.Contains(lower, ".ssh") ||
					strings.Contains(lower, ".aws/credentials") ||
					strings.Contains(lower, ".env") ||
					strings.Contains(lower, "/etc/shadow")
				sends := strings.Contains(lower, "|") ||
					strings.Contains(lower, "curl") ||
					strings.Contains(lower, "nc ") ||
					strings.Contains(lower, "wget")
				return reads && sends
			},
		},
	}
}

var instructionOverridePatterns = compilePatterns([]string{
	`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|rules?)`,
	`(?i)disregard\s+(all\s+)?(previous|prior|your)\s+(instructions?|rules?|guidelines?)`,
	`(?i)forget\s+(all\s+)?(your|previous)\s+(instructions?|rules?)`,
	`(?i)override\s+(all\s+)?(safety|security)\s+(rules?|protocols?|guidelines?)`,
	`(?i)you\s+are\s+now\s+(free|unrestricted|unfiltered)`,
	`(?i)new\s+instructions?:\s+`,
	`(?i)system\s*:\s*(you\s+are|ignore|forget)`,
})

var disableSecurityPatterns = compilePatterns([]string{
	`(?i)(disable|turn\s+off|bypass|skip)\s+(sentinel|security|guard|policy|policies|audit)`,
	`(?i)(remove|delete|uninstall)\s+sentinel`,
	`(?i)--no-?(verify|check|security|guard|policy)`,
	`(?i)SENTINEL_DISABLE`,
})

// base64PayloadPattern matches base64 runs >= 40 chars: long enough to be an
// encoded payload rather than a hash or short token.
var base64PayloadPattern = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)

// hexEscapePattern matches 4+ consecutive hex escapes like \x72\x6d\x20\x2d.
var hexEscapePattern = regexp.MustCompile(`(\\\\?x[0-9a-fA-F]{2}){4,}`)

var evalRiskPattern = regexp.MustCompile(`(?i)\b(eval|exec)\s*\(`)

var secretsPattern = regexp.MustCompile(
	`(?i)(` +
		`(api[_-]?key|api[_-]?secret|auth[_-]?token|access[_-]?token)\s*[=:]\s*\S{8,}` +
		`|Bearer\s+[A-Za-z0-9._\-]{20,}` +
		`|ghp_[A-Za-z0-9]{36,}` +
		`|\bsk-[A-Za-z0-9]{20,}` +
		`|AKIA[A-Z0-9]{16}` +
		`)`,
)

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func matchesBulkExfil(cmd string) bool {
	lower := strings.ToLower(cmd)

	hasArchive := (strings.Contains(lower, "tar ") || strings.Contains(lower, "zip ")) &&
		(strings.Contains(lower, "~/") ||
			strings.Contains(lower, "$home") ||
			strings.Contains(lower, "/home/") ||
			strings.Contains(lower, ".git") ||
			strings.Contains(lower, "/repo"))

	hasUpload := strings.Contains(lower, "curl") ||
		strings.Contains(lower, "wget") ||
		strings.Contains(lower, "scp ") ||
		strings.Contains(lower, "rsync") ||
		strings.Contains(lower, "transfer.sh") ||
		strings.Contains(lower, "file.io")

	if hasArchive && hasUpload {
		return true
	}

	// Piping archive output straight into a network client counts too.
	if (strings.Contains(lower, "tar ") || strings.Contains(lower, "zip ")) &&
		strings.Contains(lower, "|") &&
		(strings.Contains(lower, "curl") || strings.Contains(lower, "nc ")) {
		return true
	}
	return false
}
