package policy

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a policy document from disk and compiles it. A missing file is
// not fatal: the engine falls back to the built-in default document with a
// warning on diag, because a broken policy deployment must fail closed, not
// crash the gateway.
func Load(path string, diag io.Writer) (*Engine, error) {
	if diag == nil {
		diag = os.Stderr
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(diag, "warning: policy file not found at %s, using safe defaults\n", path)
			return NewEngine(DefaultDocument(), diag), nil
		}
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	return NewEngine(doc, diag), nil
}

// DefaultDocument is the built-in policy used when no file is present:
// everything not explicitly cleared is blocked, read-only basics are allowed,
// and package installs go to human review.
func DefaultDocument() Document {
	return Document{
		DefaultAction: ActionBlock,
		Rules: []Rule{
			{
				Name:        "Allow Read-Only Basics",
				Pattern:     `(?:ls|pwd|whoami|date|uptime)(?:\s|$)`,
				Action:      ActionAllow,
				Description: "Read-only, low-risk command.",
			},
			{
				Name:        "Allow Git Inspection",
				Pattern:     `git (?:status|diff|log)(?:\s|$)`,
				Action:      ActionAllow,
				Description: "Read-only git inspection.",
			},
			{
				Name:        "Review Package Installs",
				Pattern:     `(?:npm install|pip install|cargo install|brew install)\b`,
				Action:      ActionReview,
				Description: "Package installs can introduce supply-chain risk.",
			},
		},
	}
}
