// Package decision defines the verdict value produced by every layer of the
// audit pipeline. A Decision is immutable once constructed and its risk score
// is always clamped into [0, 10].
package decision

// Decision is the outcome of auditing a single command.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	RiskScore int    `json:"risk_score"`
	Reason    string `json:"reason"`
}

// New constructs a Decision with the risk score clamped into [0, 10].
func New(allowed bool, riskScore int, reason string) Decision {
	return Decision{Allowed: allowed, RiskScore: clamp(riskScore), Reason: reason}
}

// Reject is the fail-closed constructor: denied, with the given reason.
func Reject(reason string, riskScore int) Decision {
	return New(false, riskScore, reason)
}

// Allow constructs a permissive decision.
func Allow(reason string, riskScore int) Decision {
	return New(true, riskScore, reason)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
