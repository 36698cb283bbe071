package policy

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEvaluateFirstMatchWins(t *testing.T) {
	doc := Document{
		DefaultAction: ActionBlock,
		Rules: []Rule{
			{Name: "First", Pattern: `git `, Action: ActionAllow, Description: "git commands"},
			{Name: "Second", Pattern: `git push`, Action: ActionReview, Description: "pushes need review"},
		},
	}
	eng := NewEngine(doc, &bytes.Buffer{})

	res := eng.Evaluate("git push origin main")
	if res.Action != ActionAllow || res.RuleName != "First" {
		t.Fatalf("expected first rule to win, got %q via %q", res.Action, res.RuleName)
	}
}

func TestEvaluateAnchoredAtStart(t *testing.T) {
	doc := Document{
		DefaultAction: ActionBlock,
		Rules: []Rule{
			{Name: "Echo", Pattern: `echo `, Action: ActionAllow, Description: "echo is fine"},
		},
	}
	eng := NewEngine(doc, &bytes.Buffer{})

	if res := eng.Evaluate("sudo echo hi"); res.Action != ActionBlock {
		t.Fatalf("mid-string match should not fire, got %q", res.Action)
	}
	if res := eng.Evaluate("  echo hi"); res.Action != ActionAllow {
		t.Fatalf("leading whitespace should be trimmed before matching, got %q", res.Action)
	}
}

func TestEvaluateDefaultAction(t *testing.T) {
	eng := NewEngine(Document{DefaultAction: ActionReview}, &bytes.Buffer{})
	res := eng.Evaluate("mystery-binary --flag")
	if res.Action != ActionReview {
		t.Fatalf("got %q, want default review", res.Action)
	}
	if res.RuleName != DefaultRuleName {
		t.Fatalf("got rule name %q, want %q", res.RuleName, DefaultRuleName)
	}
}

func TestEvaluateEmptyDefaultBlocks(t *testing.T) {
	eng := NewEngine(Document{}, &bytes.Buffer{})
	if res := eng.Evaluate("anything"); res.Action != ActionBlock {
		t.Fatalf("empty default_action must fail closed, got %q", res.Action)
	}
}

func TestNewEngineSkipsInvalidRegex(t *testing.T) {
	var diag bytes.Buffer
	doc := Document{
		DefaultAction: ActionBlock,
		Rules: []Rule{
			{Name: "Broken", Pattern: `[unclosed`, Action: ActionAllow},
			{Name: "Good", Pattern: `ls`, Action: ActionAllow, Description: "listing"},
		},
	}
	eng := NewEngine(doc, &diag)

	if res := eng.Evaluate("ls -la"); res.Action != ActionAllow || res.RuleName != "Good" {
		t.Fatalf("valid rule should survive invalid sibling, got %+v", res)
	}
	if !strings.Contains(diag.String(), "Broken") {
		t.Fatalf("expected warning naming the broken rule, got %q", diag.String())
	}
}

func TestNewEngineUnknownActionBlocks(t *testing.T) {
	doc := Document{
		DefaultAction: ActionAllow,
		Rules: []Rule{
			{Name: "Typo", Pattern: `rm `, Action: Action("alow")},
		},
	}
	eng := NewEngine(doc, &bytes.Buffer{})
	if res := eng.Evaluate("rm file"); res.Action != ActionBlock {
		t.Fatalf("unknown action must coerce to block, got %q", res.Action)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	var diag bytes.Buffer
	eng, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &diag)
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if !strings.Contains(diag.String(), "safe defaults") {
		t.Fatalf("expected a defaults warning, got %q", diag.String())
	}
	if res := eng.Evaluate("mkfs /dev/sda"); res.Action != ActionBlock {
		t.Fatalf("default document must block unknown commands, got %q", res.Action)
	}
	if res := eng.Evaluate("git status"); res.Action != ActionAllow {
		t.Fatalf("default document should allow git status, got %q", res.Action)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `default_action: block
rules:
  - name: "Allow Echo"
    pattern: "echo "
    action: allow
    description: "echo is harmless"
  - name: "Review Deploys"
    pattern: "kubectl apply"
    action: review
    description: "deploys need eyes"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	eng, err := Load(path, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if res := eng.Evaluate("echo hello"); res.Action != ActionAllow {
		t.Fatalf("got %q, want allow", res.Action)
	}
	res := eng.Evaluate("kubectl apply -f deploy.yaml")
	if res.Action != ActionReview || res.Reason != "deploys need eyes" {
		t.Fatalf("got %+v, want review with rule description", res)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("rules: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
