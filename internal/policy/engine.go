// Package policy implements the ordered regex rule engine that gates every
// command before the deeper audit layers run. Rules are loaded once at
// startup and immutable for the process lifetime; changing policy requires a
// restart so that no decision straddles two rule sets.
package policy

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// DefaultRuleName is reported when no rule matches and the default action
// applies.
const DefaultRuleName = "Default Policy"

type compiledRule struct {
	re     *regexp.Regexp
	action Action
	name   string
	reason string
}

// Engine evaluates commands against an ordered rule list, first match wins.
type Engine struct {
	rules         []compiledRule
	defaultAction Action
}

// NewEngine compiles a policy document. Rules with invalid regular
// expressions are skipped with a warning on diag; they are never fatal.
func NewEngine(doc Document, diag io.Writer) *Engine {
	if diag == nil {
		diag = os.Stderr
	}

	defaultAction := doc.DefaultAction
	switch defaultAction {
	case ActionAllow, ActionBlock, ActionReview:
	default:
		// Unknown or absent default: fail closed.
		defaultAction = ActionBlock
	}

	e := &Engine{defaultAction: defaultAction}
	for _, rule := range doc.Rules {
		if rule.Pattern == "" {
			continue
		}
		// Anchor at the start: a rule matches the head of the command,
		// not an arbitrary substring.
		re, err := regexp.Compile("^(?:" + rule.Pattern + ")")
		if err != nil {
			fmt.Fprintf(diag, "warning: invalid regex pattern in rule %q: %v\n", rule.Name, err)
			continue
		}

		action := rule.Action
		switch action {
		case ActionAllow, ActionBlock, ActionReview:
		default:
			action = ActionBlock
		}

		name := rule.Name
		if name == "" {
			name = "Unknown Rule"
		}
		reason := rule.Description
		if reason == "" {
			reason = "Matched policy rule"
		}

		e.rules = append(e.rules, compiledRule{re: re, action: action, name: name, reason: reason})
	}
	return e
}

// Evaluate matches the raw command, stripped, against the rules in file
// order and returns the first match. With no match the configured default
// action applies.
func (e *Engine) Evaluate(command string) Result {
	stripped := strings.TrimSpace(command)

	for _, rule := range e.rules {
		if rule.re.MatchString(stripped) {
			return Result{Action: rule.action, RuleName: rule.name, Reason: rule.reason}
		}
	}

	return Result{
		Action:   e.defaultAction,
		RuleName: DefaultRuleName,
		Reason:   "No specific rule matched, applying default action",
	}
}

// DefaultAction returns the engine's configured fallback action.
func (e *Engine) DefaultAction() Action {
	return e.defaultAction
}
