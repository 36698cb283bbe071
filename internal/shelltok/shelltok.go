// Package shelltok provides shell-aware tokenization for the audit layers.
// It parses commands with mvdan.cc/sh and extracts the pieces the filters
// care about: the resolved executable, literal word tokens, URL arguments,
// and the presence of shell-control metacharacters. When the parser rejects
// a command the helpers fall back to plain whitespace splitting, so callers
// always get a best-effort answer.
package shelltok

import (
	"errors"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

var (
	envAssignmentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=.*$`)
	shellControlRe  = regexp.MustCompile("(?:\\|\\||&&|[;|`<>])")
	rawURLRe        = regexp.MustCompile(`https?://[^\s'"]+`)
)

// ErrUnparseable is returned by Argv when a command cannot be understood as a
// single simple command.
var ErrUnparseable = errors.New("command is not a single simple command")

func parse(command string) (*syntax.File, error) {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	return parser.Parse(strings.NewReader(command), "")
}

// wordLiteral flattens a parsed word to its unquoted literal value. Parts the
// shell would expand at runtime (parameters, substitutions) are kept as
// source text.
func wordLiteral(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				if lit, ok := inner.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				} else {
					sb.WriteString(printPart(inner))
				}
			}
		default:
			sb.WriteString(printPart(part))
		}
	}
	return sb.String()
}

func printPart(part syntax.WordPart) string {
	var sb strings.Builder
	printer := syntax.NewPrinter()
	_ = printer.Print(&sb, part)
	return sb.String()
}

// Fields returns every literal word token in the command, in source order.
// Shell operators are not included. On parse failure it falls back to
// whitespace splitting.
func Fields(command string) []string {
	file, err := parse(command)
	if err != nil {
		return strings.Fields(command)
	}

	var fields []string
	syntax.Walk(file, func(node syntax.Node) bool {
		if word, ok := node.(*syntax.Word); ok {
			fields = append(fields, wordLiteral(word))
			return false
		}
		return true
	})
	return fields
}

// Argv tokenizes a single simple command into an argument vector suitable for
// direct process execution. Commands with operators, compound statements, or
// parse errors report an error.
func Argv(command string) ([]string, error) {
	file, err := parse(command)
	if err != nil {
		return nil, err
	}
	if len(file.Stmts) != 1 {
		return nil, ErrUnparseable
	}

	call, ok := file.Stmts[0].Cmd.(*syntax.CallExpr)
	if !ok {
		return nil, ErrUnparseable
	}

	argv := make([]string, 0, len(call.Args))
	for _, word := range call.Args {
		argv = append(argv, wordLiteral(word))
	}
	if len(argv) == 0 {
		return nil, ErrUnparseable
	}
	return argv, nil
}

// Executable resolves the executable name of a command: the first token that
// is neither a flag nor a VAR=value assignment, with a leading `env`
// invocation (and its flags and assignments) skipped, lowercased and reduced
// to its basename. The boolean is false when no executable token exists.
func Executable(command string) (string, bool) {
	tokens := firstCallWords(command)
	if len(tokens) == 0 {
		return "", false
	}

	start := 0
	if basename(strings.ToLower(strings.TrimSpace(tokens[0]))) == "env" {
		start = 1
		for start < len(tokens) {
			token := strings.TrimSpace(tokens[start])
			if token == "" {
				start++
				continue
			}
			if token == "--" {
				start++
				break
			}
			if strings.HasPrefix(token, "-") || envAssignmentRe.MatchString(token) {
				start++
				continue
			}
			break
		}
	}

	for _, token := range tokens[start:] {
		stripped := strings.TrimSpace(token)
		if stripped == "" || envAssignmentRe.MatchString(stripped) {
			continue
		}
		return basename(strings.ToLower(stripped)), true
	}
	return "", false
}

// firstCallWords returns the literal words of the first simple command in the
// input, falling back to whitespace fields when parsing fails.
func firstCallWords(command string) []string {
	file, err := parse(command)
	if err != nil {
		return strings.Fields(command)
	}

	var words []string
	syntax.Walk(file, func(node syntax.Node) bool {
		if len(words) > 0 {
			return false
		}
		if call, ok := node.(*syntax.CallExpr); ok {
			for _, word := range call.Args {
				words = append(words, wordLiteral(word))
			}
			return false
		}
		return true
	})
	return words
}

// ContainsShellControl reports whether the command carries shell-control
// metacharacters: pipes, logical operators, separators, redirections,
// backticks, command substitution, or embedded newlines.
func ContainsShellControl(command string) bool {
	if strings.Contains(command, "$(") || strings.Contains(command, "\n") || strings.Contains(command, "\r") {
		return true
	}
	return shellControlRe.MatchString(command)
}

// URLTokens extracts http(s) URL arguments. Tokenized words are preferred;
// when none carry a URL, a raw regex scan catches unusual quoting.
func URLTokens(command string) []string {
	var urls []string
	for _, token := range Fields(command) {
		if strings.HasPrefix(token, "http://") || strings.HasPrefix(token, "https://") {
			urls = append(urls, token)
		}
	}
	if len(urls) > 0 {
		return urls
	}
	return rawURLRe.FindAllString(command, -1)
}

func basename(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
