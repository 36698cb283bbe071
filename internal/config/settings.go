package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHost        = "127.0.0.1"
	defaultPort        = 8765
	defaultExecTimeout = 15 * time.Second
	minExecTimeout     = 1 * time.Second
	maxExecTimeout     = 300 * time.Second
)

// Settings carries the runtime knobs read from the environment once at
// startup.
type Settings struct {
	AuthToken    string
	AuthDisabled bool
	ExecTimeout  time.Duration
	Host         string
	Port         int
	Model        string
	GeminiAPIKey string

	DBPath           string
	ConstitutionPath string
	PolicyPath       string
}

// FromEnv builds Settings from the process environment. Malformed numeric
// values fall back to defaults rather than failing startup; the execution
// timeout is clamped to [1s, 300s].
func FromEnv() Settings {
	s := Settings{
		AuthToken:        os.Getenv("SENTINEL_AUTH_TOKEN"),
		AuthDisabled:     boolEnv("SENTINEL_DISABLE_AUTH"),
		ExecTimeout:      defaultExecTimeout,
		Host:             defaultHost,
		Port:             defaultPort,
		Model:            os.Getenv("SENTINEL_MODEL"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		DBPath:           envOr("SENTINEL_DB_PATH", defaultDBPath()),
		ConstitutionPath: envOr("SENTINEL_CONSTITUTION_PATH", "constitution.yaml"),
		PolicyPath:       envOr("SENTINEL_POLICY_PATH", "policy.yaml"),
	}

	if raw := os.Getenv("SENTINEL_EXEC_TIMEOUT_SEC"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil {
			s.ExecTimeout = ClampTimeout(time.Duration(secs) * time.Second)
		}
	}
	if host := os.Getenv("SENTINEL_HOST"); host != "" {
		s.Host = host
	}
	if raw := os.Getenv("SENTINEL_PORT"); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil && port > 0 && port < 65536 {
			s.Port = port
		}
	}
	return s
}

// ClampTimeout bounds an execution timeout to the supported range.
func ClampTimeout(d time.Duration) time.Duration {
	if d < minExecTimeout {
		return minExecTimeout
	}
	if d > maxExecTimeout {
		return maxExecTimeout
	}
	return d
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sentinel.db"
	}
	return home + "/.sentinel/sentinel.db"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
