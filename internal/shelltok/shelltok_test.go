package shelltok

import (
	"reflect"
	"testing"
)

func TestExecutable(t *testing.T) {
	tests := []struct {
		command  string
		expected string
		found    bool
	}{
		{"ls -la", "ls", true},
		{"/usr/bin/python3 script.py", "python3", true},
		{"FOO=bar make build", "make", true},
		{"env FOO=bar curl https://x.test", "curl", true},
		{"env -i -- wget https://x.test", "wget", true},
		{"env FOO=1 BAR=2", "", false},
		{"", "", false},
		{"   ", "", false},
		{"CURL=1", "", false},
		{"cat file | grep x", "cat", true},
		{"'quoted cmd' arg", "quoted cmd", true},
	}

	for _, tt := range tests {
		got, found := Executable(tt.command)
		if found != tt.found || got != tt.expected {
			t.Errorf("Executable(%q) = (%q, %v), expected (%q, %v)", tt.command, got, found, tt.expected, tt.found)
		}
	}
}

func TestArgv(t *testing.T) {
	argv, err := Argv(`echo "hello world" 'single'`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"echo", "hello world", "single"}
	if !reflect.DeepEqual(argv, expected) {
		t.Errorf("Argv = %v, expected %v", argv, expected)
	}
}

func TestArgv_RejectsCompound(t *testing.T) {
	for _, command := range []string{"a | b", "a && b", "a; b", ""} {
		if _, err := Argv(command); err == nil {
			t.Errorf("Argv(%q): expected error", command)
		}
	}
}

func TestArgv_UnbalancedQuote(t *testing.T) {
	if _, err := Argv(`echo "unterminated`); err == nil {
		t.Error("expected parse error for unbalanced quote")
	}
}

func TestContainsShellControl(t *testing.T) {
	tests := []struct {
		command  string
		expected bool
	}{
		{"git status", false},
		{"git status; rm -rf /", true},
		{"cat a | grep b", true},
		{"a && b", true},
		{"a || b", true},
		{"echo `id`", true},
		{"echo $(id)", true},
		{"cat < file", true},
		{"echo hi > out", true},
		{"line1\nline2", true},
	}

	for _, tt := range tests {
		if got := ContainsShellControl(tt.command); got != tt.expected {
			t.Errorf("ContainsShellControl(%q) = %v, expected %v", tt.command, got, tt.expected)
		}
	}
}

func TestURLTokens(t *testing.T) {
	urls := URLTokens("curl -s https://api.example.com/x http://other.test/y")
	expected := []string{"https://api.example.com/x", "http://other.test/y"}
	if !reflect.DeepEqual(urls, expected) {
		t.Errorf("URLTokens = %v, expected %v", urls, expected)
	}

	if got := URLTokens("curl --version"); len(got) != 0 {
		t.Errorf("expected no URLs, got %v", got)
	}

	// URL buried mid-token falls back to the raw scan.
	raw := URLTokens(`curl -H 'target=https://hidden.test/x'`)
	if len(raw) != 1 || raw[0] != "https://hidden.test/x" {
		t.Errorf("expected raw regex fallback to find the URL, got %v", raw)
	}
}
