package policy

// Action is the outcome a rule (or the default) assigns to a command.
type Action string

const (
	ActionAllow  Action = "allow"
	ActionBlock  Action = "block"
	ActionReview Action = "review"
)

// Rule is a single ordered policy entry. Patterns are matched against the
// start of the raw command; the first matching rule wins.
type Rule struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Action      Action `yaml:"action"`
	Description string `yaml:"description"`
}

// Document is the on-disk policy format.
type Document struct {
	DefaultAction Action `yaml:"default_action"`
	Rules         []Rule `yaml:"rules"`
}

// Result is the engine's verdict for one command.
type Result struct {
	Action   Action
	RuleName string
	Reason   string
}
