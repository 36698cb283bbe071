// Package redact scrubs credential material from text before it reaches the
// audit trail. Commands routinely carry inline tokens; the audit file must
// not become a secondary secret store.
package redact

import (
	"regexp"
)

var sensitivePatterns = []*regexp.Regexp{
	// Cloud provider keys
	regexp.MustCompile(`(?i)(aws_access_key_id|aws_secret_access_key|aws_session_token)\s*[=:]\s*['"]?[A-Za-z0-9/+=]{20,}['"]?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),

	// GitHub tokens
	regexp.MustCompile(`(?i)(github_token|gh_token|github_pat)\s*[=:]\s*['"]?[A-Za-z0-9_-]{30,}['"]?`),
	regexp.MustCompile(`gh[oprsu]_[A-Za-z0-9]{36}`),

	// Gemini / Google API keys
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	regexp.MustCompile(`(?i)(gemini_api_key|google_api_key)\s*[=:]\s*['"]?[A-Za-z0-9_-]{16,}['"]?`),

	// Generic API keys and tokens
	regexp.MustCompile(`(?i)(api_key|apikey|api-key|secret_key|secretkey|secret-key|access_token|auth_token)\s*[=:]\s*['"]?[A-Za-z0-9_-]{16,}['"]?`),

	// Sentinel's own shared secret
	regexp.MustCompile(`(?i)(x-sentinel-token|sentinel_auth_token)\s*[=:]\s*['"]?\S{8,}['"]?`),

	// Private key material
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`),

	// Bearer tokens and basic auth in URLs
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{20,}`),
	regexp.MustCompile(`https?://[^:/\s]+:[^@\s]+@`),

	// Slack and Stripe
	regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`),
	regexp.MustCompile(`[sr]k_live_[0-9a-zA-Z]{24}`),

	// Password assignments
	regexp.MustCompile(`(?i)(password|passwd|pwd|secret)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`),
}

const placeholder = "[REDACTED]"

// Redact replaces anything matching a known secret pattern with a
// placeholder.
func Redact(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, placeholder)
	}
	return result
}
