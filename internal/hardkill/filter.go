// Package hardkill implements the deterministic first-pass rejection layer.
// The filter never consults anything probabilistic: it resolves a command
// from blocklists, the lockdown allowlist, and the network domain whitelist,
// or it defers to the semantic layer.
package hardkill

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sentinelgate/sentinel/internal/decision"
	"github.com/sentinelgate/sentinel/internal/shelltok"
)

// Config holds the constitution-derived deterministic rules. It is built once
// at startup and read-only afterwards.
type Config struct {
	BlockedStrings      []string
	BlockedPaths        []string
	BlockedTools        []string
	BlockedNetworkTools []string
	WhitelistedDomains  []string
	LockdownMode        bool
	AllowedCommands     []string
}

// DefaultConfig mirrors the built-in constitution defaults.
func DefaultConfig() Config {
	return Config{
		BlockedStrings:      []string{"sudo", "rm -rf", "mkfs"},
		BlockedPaths:        []string{"~/.ssh", "~/.env", "/etc/"},
		BlockedTools:        []string{"python", "pip", "npm"},
		BlockedNetworkTools: []string{"curl", "wget"},
	}
}

var (
	pythonVersionedRe = regexp.MustCompile(`^python(?:\d+(?:\.\d+)*)?$`)
	base64ToShellRe   = regexp.MustCompile(`(?:\||&&|;)\s*(?:bash|sh)\b`)
	unsafeSuffixRe    = regexp.MustCompile("^(?:[;&|`<>]|\\$\\()")
)

// Filter applies the deterministic checks to a normalized command.
type Filter struct {
	cfg Config
}

func New(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Config returns the filter's configuration (for inspection/testing).
func (f *Filter) Config() Config {
	return f.cfg
}

// Apply runs the check chain in order, first match wins. The boolean is false
// when no deterministic rule resolves the command and the semantic layer
// should decide.
func (f *Filter) Apply(command string) (decision.Decision, bool) {
	if strings.TrimSpace(command) == "" {
		return decision.Reject("Empty command is rejected under fail-closed policy.", 10), true
	}

	if f.cfg.LockdownMode && !f.AllowedInLockdown(command) {
		return decision.Reject("Lockdown mode active: command not in allowed_commands.", 10), true
	}

	lowered := strings.ToLower(command)

	for _, blocked := range f.cfg.BlockedStrings {
		if blocked != "" && strings.Contains(lowered, strings.ToLower(blocked)) {
			return decision.Reject(fmt.Sprintf("Blocked token detected: %s", blocked), 10), true
		}
	}

	for _, blockedPath := range f.cfg.BlockedPaths {
		if blockedPath != "" && strings.Contains(lowered, strings.ToLower(blockedPath)) {
			return decision.Reject(fmt.Sprintf("Blocked path access detected: %s", blockedPath), 10), true
		}
	}

	if tool, ok := f.matchBlockedTool(command); ok {
		return decision.Reject(fmt.Sprintf("Blocked tool detected: %s", tool), 10), true
	}

	if containsBase64ShellExec(lowered) {
		return decision.Reject("Obfuscated payload execution pattern detected: base64 to shell.", 10), true
	}

	if f.usesNetworkTool(command) {
		if d, resolved := f.checkNetworkTargets(command); resolved {
			return d, true
		}
	}

	return decision.Decision{}, false
}

// AllowedInLockdown reports whether the command matches the lockdown
// allowlist. A match requires the command to be free of shell-control
// metacharacters and to either equal an allowed entry, extend it with a safe
// suffix, or resolve to an allowed executable.
func (f *Filter) AllowedInLockdown(command string) bool {
	if len(f.cfg.AllowedCommands) == 0 {
		return false
	}

	normalized := strings.ToLower(strings.TrimSpace(command))
	if shelltok.ContainsShellControl(normalized) {
		return false
	}

	executable, hasExecutable := shelltok.Executable(command)

	for _, allowed := range f.cfg.AllowedCommands {
		entry := strings.ToLower(strings.TrimSpace(allowed))
		if entry == "" {
			continue
		}

		if strings.Contains(entry, " ") {
			if normalized == entry {
				return true
			}
			if strings.HasPrefix(normalized, entry) && isSafeLockdownSuffix(normalized[len(entry):]) {
				return true
			}
		} else if normalized == entry || strings.HasPrefix(normalized, entry+" ") {
			return true
		}

		if hasExecutable && executable == entry {
			return true
		}
	}
	return false
}

// isSafeLockdownSuffix accepts only suffixes that cannot smuggle a second
// command: empty, whitespace, or arguments that do not open with a
// shell-control character.
func isSafeLockdownSuffix(suffix string) bool {
	if suffix == "" {
		return true
	}
	stripped := strings.TrimLeft(suffix, " \t")
	if stripped == "" {
		return true
	}
	return !unsafeSuffixRe.MatchString(stripped)
}

func (f *Filter) matchBlockedTool(command string) (string, bool) {
	candidate, ok := shelltok.Executable(command)
	if !ok {
		return "", false
	}

	for _, blockedTool := range f.cfg.BlockedTools {
		blocked := strings.ToLower(strings.TrimSpace(blockedTool))
		if blocked == "" {
			continue
		}
		if candidate == blocked {
			return blockedTool, true
		}
		// "python" also covers versioned spellings: python3, python3.11, ...
		if blocked == "python" && pythonVersionedRe.MatchString(candidate) {
			return blockedTool, true
		}
	}
	return "", false
}

func (f *Filter) usesNetworkTool(command string) bool {
	executable, ok := shelltok.Executable(command)
	if !ok {
		return false
	}
	for _, tool := range f.cfg.BlockedNetworkTools {
		if executable == strings.ToLower(strings.TrimSpace(tool)) {
			return true
		}
	}
	return false
}

// checkNetworkTargets enforces the domain whitelist on every URL carried by a
// network command. A network command without any URL is treated as a silent
// target and rejected.
func (f *Filter) checkNetworkTargets(command string) (decision.Decision, bool) {
	urls := shelltok.URLTokens(command)
	if len(urls) == 0 {
		return decision.Reject("Network command without explicit URL/domain is rejected.", 10), true
	}

	for _, raw := range urls {
		domain := extractDomain(raw)
		if domain == "" {
			return decision.Reject(fmt.Sprintf("Could not parse domain from network target: %s", raw), 10), true
		}
		if !f.isWhitelistedDomain(domain) {
			return decision.Reject(fmt.Sprintf("Outbound network domain not whitelisted: %s", domain), 10), true
		}
	}
	return decision.Decision{}, false
}

func (f *Filter) isWhitelistedDomain(domain string) bool {
	for _, allowed := range f.cfg.WhitelistedDomains {
		candidate := strings.ToLower(strings.TrimSpace(allowed))
		if candidate == "" {
			continue
		}
		if domain == candidate || strings.HasSuffix(domain, "."+candidate) {
			return true
		}
	}
	return false
}

func extractDomain(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

func containsBase64ShellExec(lowered string) bool {
	hasDecode := strings.Contains(lowered, "base64 -d") || strings.Contains(lowered, "base64 --decode")
	return hasDecode && base64ToShellRe.MatchString(lowered)
}
