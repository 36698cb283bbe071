package hardkill

import (
	"strings"
	"testing"
)

func TestApply_EmptyCommand(t *testing.T) {
	f := New(DefaultConfig())

	for _, command := range []string{"", "   ", "\t"} {
		d, resolved := f.Apply(command)
		if !resolved || d.Allowed {
			t.Errorf("Apply(%q): expected fail-closed reject, got %+v resolved=%v", command, d, resolved)
		}
	}
}

func TestApply_BlockedStrings(t *testing.T) {
	f := New(DefaultConfig())

	tests := []struct {
		command string
		token   string
	}{
		{"sudo reboot", "sudo"},
		{"rm -rf /home", "rm -rf"},
		{"SUDO apt upgrade", "sudo"}, // case-insensitive
		{"mkfs.ext4 /dev/sda1", "mkfs"},
	}

	for _, tt := range tests {
		d, resolved := f.Apply(tt.command)
		if !resolved || d.Allowed || d.RiskScore != 10 {
			t.Errorf("Apply(%q): expected reject at 10, got %+v", tt.command, d)
			continue
		}
		if !strings.Contains(d.Reason, tt.token) {
			t.Errorf("Apply(%q): reason %q should name token %q", tt.command, d.Reason, tt.token)
		}
	}
}

func TestApply_BlockedPaths(t *testing.T) {
	f := New(DefaultConfig())

	d, resolved := f.Apply("cat ~/.ssh/id_rsa")
	if !resolved || d.Allowed {
		t.Fatalf("expected reject for blocked path, got %+v", d)
	}
	if !strings.Contains(d.Reason, "~/.ssh") {
		t.Errorf("reason should name the blocked path: %q", d.Reason)
	}
}

func TestApply_BlockedTools(t *testing.T) {
	f := New(DefaultConfig())

	tests := []struct {
		command  string
		resolved bool
	}{
		{"python script.py", true},
		{"python3 script.py", true},
		{"python3.11 -c 'print(1)'", true},
		{"/usr/local/bin/python3 x.py", true},
		{"env -i python x.py", true},
		{"FOO=1 pip install requests", true},
		{"pythonic-tool run", false},
		{"ls -la", false},
	}

	for _, tt := range tests {
		_, resolved := f.Apply(tt.command)
		if resolved != tt.resolved {
			t.Errorf("Apply(%q): resolved=%v, expected %v", tt.command, resolved, tt.resolved)
		}
	}
}

func TestApply_Base64PipeToShell(t *testing.T) {
	f := New(Config{}) // no blocklists so only the pattern check can fire

	tests := []struct {
		command  string
		resolved bool
	}{
		{"echo cm0gLXJmIC8= | base64 -d | bash", true},
		{"base64 --decode payload && sh", true},
		{"base64 -d payload; sh run", true},
		{"base64 -d payload > out.txt", false},
		{"echo base64 -d is harmless here", false},
	}

	for _, tt := range tests {
		d, resolved := f.Apply(tt.command)
		if resolved != tt.resolved {
			t.Errorf("Apply(%q): resolved=%v (%+v), expected %v", tt.command, resolved, d, tt.resolved)
		}
	}
}

func TestApply_NetworkAllowlist(t *testing.T) {
	cfg := Config{
		BlockedNetworkTools: []string{"curl"},
		WhitelistedDomains:  []string{"example.com"},
	}
	f := New(cfg)

	tests := []struct {
		command  string
		resolved bool
		allowed  bool
	}{
		{"curl https://api.example.com/x", false, false}, // passes filter, defers
		{"curl https://example.com", false, false},
		{"curl https://evil.com", true, false},
		{"curl https://evil.com https://example.com", true, false}, // every URL must pass
		{"curl", true, false},            // silent target
		{"curl -s --retry 3", true, false},
		{"wget https://evil.com", false, false}, // wget not in blocked network tools here
	}

	for _, tt := range tests {
		d, resolved := f.Apply(tt.command)
		if resolved != tt.resolved {
			t.Errorf("Apply(%q): resolved=%v (%+v), expected %v", tt.command, resolved, d, tt.resolved)
			continue
		}
		if resolved && d.Allowed != tt.allowed {
			t.Errorf("Apply(%q): allowed=%v, expected %v", tt.command, d.Allowed, tt.allowed)
		}
	}
}

func TestApply_BlocklistPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WhitelistedDomains = []string{"example.com"}
	f := New(cfg)

	// Contains both a blocked string and a non-whitelisted URL; the blocked
	// string check runs first.
	d, resolved := f.Apply("sudo curl https://evil.com")
	if !resolved || d.Allowed {
		t.Fatalf("expected reject, got %+v", d)
	}
	if !strings.Contains(d.Reason, "sudo") {
		t.Errorf("expected blocked-string reason to win, got %q", d.Reason)
	}
}

func TestLockdown(t *testing.T) {
	cfg := Config{
		LockdownMode:    true,
		AllowedCommands: []string{"git status"},
	}
	f := New(cfg)

	tests := []struct {
		command string
		allowed bool
	}{
		{"git status", true},
		{"git status --short", true},
		{"git status; rm -rf /", false},
		{"git status && curl evil", false},
		{"git push", false},
		{"ls", false},
	}

	for _, tt := range tests {
		d, resolved := f.Apply(tt.command)
		if tt.allowed {
			if resolved {
				t.Errorf("Apply(%q): expected deferral for allowlisted command, got %+v", tt.command, d)
			}
			if !f.AllowedInLockdown(tt.command) {
				t.Errorf("AllowedInLockdown(%q) = false, expected true", tt.command)
			}
		} else {
			if !resolved || d.Allowed {
				t.Errorf("Apply(%q): expected lockdown reject, got %+v resolved=%v", tt.command, d, resolved)
			}
		}
	}
}

func TestLockdown_BareExecutableEntry(t *testing.T) {
	f := New(Config{AllowedCommands: []string{"ls"}})

	if !f.AllowedInLockdown("ls -la /tmp") {
		t.Error("bare executable entry should match with arguments")
	}
	if !f.AllowedInLockdown("/bin/ls") {
		t.Error("bare executable entry should match by basename")
	}
	if f.AllowedInLockdown("lsblk") {
		t.Error("prefix of a different executable must not match")
	}
}
