package semantic

import (
	"strings"
	"testing"
)

func TestParseVerdictStrictJSON(t *testing.T) {
	v, err := parseVerdict(`{"allowed": false, "risk_score": 9, "reason": "destructive"}`)
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed || v.RiskScore != 9 || v.Reason != "destructive" {
		t.Fatalf("got %+v", v)
	}
}

func TestParseVerdictWrappedInProse(t *testing.T) {
	text := "Here is my analysis:\n```json\n{\"allowed\": true, \"risk_score\": 2, \"reason\": \"benign\"}\n```\nLet me know."
	v, err := parseVerdict(text)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Allowed || v.RiskScore != 2 {
		t.Fatalf("got %+v", v)
	}
}

func TestParseVerdictPythonicLiterals(t *testing.T) {
	v, err := parseVerdict(`{'allowed': False, 'risk_score': 8, 'reason': 'curl piped to shell'}`)
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed || v.RiskScore != 8 || v.Reason != "curl piped to shell" {
		t.Fatalf("got %+v", v)
	}
}

func TestParseVerdictFieldwiseFallback(t *testing.T) {
	// Broken JSON that neither strict nor fixup parsing accepts.
	v, err := parseVerdict(`{allowed: true, risk_score: 3, reason: fine}`)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Allowed || v.RiskScore != 3 {
		t.Fatalf("got %+v", v)
	}
}

func TestParseVerdictMissingAllowedInferredFromRisk(t *testing.T) {
	v, err := parseVerdict(`{"risk_score": 2, "reason": "looks fine"}`)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Allowed {
		t.Fatalf("risk < 5 without allowed should infer allow, got %+v", v)
	}

	v, err = parseVerdict(`{"risk_score": 7, "reason": "sketchy"}`)
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed {
		t.Fatalf("risk >= 5 without allowed must deny, got %+v", v)
	}
}

func TestParseVerdictMissingReasonGetsDefault(t *testing.T) {
	v, err := parseVerdict(`{"allowed": true, "risk_score": 1}`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(v.Reason, "implied reason") {
		t.Fatalf("got reason %q", v.Reason)
	}
}

func TestParseVerdictUnparseableRisk(t *testing.T) {
	v, err := parseVerdict(`{"allowed": "true", "risk_score": "low", "reason": "meh"}`)
	if err != nil {
		t.Fatal(err)
	}
	if v.RiskScore != 5 {
		t.Fatalf("unparseable risk should default to 5, got %+v", v)
	}
	if !v.Allowed {
		t.Fatalf("string \"true\" should coerce to allowed, got %+v", v)
	}
}

func TestParseVerdictNoBraces(t *testing.T) {
	if _, err := parseVerdict("I cannot evaluate this command."); err == nil {
		t.Fatal("expected error for braceless response")
	}
}
