package semantic

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// verdict is the structured output expected from a judge backend.
type verdict struct {
	Allowed   bool
	RiskScore int
	Reason    string
}

var braceRe = regexp.MustCompile(`(?s)\{.*\}`)

// parseVerdict extracts a verdict from raw model output. Models are sloppy:
// the JSON may be wrapped in prose or fences, use single quotes, or use
// True/False/None literals. Parsing degrades through three stages before
// giving up: strict JSON, pythonic-literal fixup, then per-field regex.
func parseVerdict(text string) (verdict, error) {
	payload := braceRe.FindString(text)
	if payload == "" {
		return verdict{}, fmt.Errorf("no JSON object found in response: %q", text)
	}

	fields, ok := parseStrict(payload)
	if !ok {
		fields, ok = parseStrict(pythonicFixup(payload))
	}
	if !ok {
		fields = parseFieldwise(payload)
	}
	if len(fields) == 0 {
		return verdict{}, fmt.Errorf("unparseable auditor response: %q", text)
	}

	return coerce(fields), nil
}

func parseStrict(payload string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, false
	}
	return m, true
}

var (
	singleQuoteRe = regexp.MustCompile(`'([^']*)'`)
	pyTrueRe      = regexp.MustCompile(`\bTrue\b`)
	pyFalseRe     = regexp.MustCompile(`\bFalse\b`)
	pyNoneRe      = regexp.MustCompile(`\bNone\b`)
)

// pythonicFixup rewrites python dict syntax into JSON.
func pythonicFixup(payload string) string {
	s := singleQuoteRe.ReplaceAllString(payload, `"$1"`)
	s = pyTrueRe.ReplaceAllString(s, "true")
	s = pyFalseRe.ReplaceAllString(s, "false")
	s = pyNoneRe.ReplaceAllString(s, "null")
	return s
}

// parseFieldwise is the last-ditch extractor: pull each known key out of the
// payload individually so one mangled field does not sink the others.
func parseFieldwise(payload string) map[string]any {
	fields := make(map[string]any)
	for _, key := range []string{"allowed", "risk_score", "reason"} {
		re := regexp.MustCompile(`["']?` + key + `["']?\s*:\s*([^,}]+)`)
		m := re.FindStringSubmatch(payload)
		if m == nil {
			continue
		}
		val := strings.Trim(strings.TrimSpace(m[1]), `"'`)
		switch key {
		case "allowed":
			fields[key] = strings.EqualFold(val, "true")
		case "risk_score":
			if n, err := strconv.Atoi(val); err == nil {
				fields[key] = n
			} else {
				fields[key] = 5
			}
		default:
			fields[key] = val
		}
	}
	return fields
}

// coerce normalizes loose field types and fills gaps fail-closed.
func coerce(fields map[string]any) verdict {
	v := verdict{}

	risk, haveRisk := intField(fields, "risk_score")
	if haveRisk {
		v.RiskScore = risk
	} else {
		v.RiskScore = 10
	}

	switch raw := fields["allowed"].(type) {
	case bool:
		v.Allowed = raw
	case string:
		v.Allowed = strings.EqualFold(raw, "true")
	default:
		// Missing verdict bit: infer from risk when present, otherwise deny.
		v.Allowed = haveRisk && risk < 5
	}

	if reason, ok := fields["reason"].(string); ok && strings.TrimSpace(reason) != "" {
		v.Reason = strings.TrimSpace(reason)
	} else {
		v.Reason = "Semantic analysis completed (implied reason)."
	}

	return v
}

func intField(fields map[string]any, key string) (int, bool) {
	switch raw := fields[key].(type) {
	case int:
		return raw, true
	case float64:
		return int(raw), true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return n, true
		}
		return 5, true
	default:
		return 0, false
	}
}
