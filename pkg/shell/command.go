package shell

import (
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Built-in verbs. Anything else typed at the prompt is SQL.
const (
	VerbCSVImport     = "csv_import"
	VerbURLImport     = "url_import"
	VerbChart         = "chart"
	VerbAnalyze       = "analyze"
	VerbShowDatabases = "show databases"
	VerbShowTables    = "show tables"
	VerbDescribe      = "describe"
	VerbUse           = "use"
	VerbHealth        = "health"
	VerbDump          = "dump"
	VerbHistory       = "history"
	VerbClear         = "clear"
	VerbHelp          = "help"
	VerbExit          = "exit"
)

var aliases = map[string]string{
	"csv_import": VerbCSVImport,
	"url_import": VerbURLImport,
	"chart":      VerbChart,
	"analyze":    VerbAnalyze,
	`\l`:         VerbShowDatabases,
	`\dt`:        VerbShowTables,
	".tables":    VerbShowTables,
	"describe":   VerbDescribe,
	"desc":       VerbDescribe,
	`\d`:         VerbDescribe,
	".schema":    VerbDescribe,
	"use":        VerbUse,
	`\c`:         VerbUse,
	"health":     VerbHealth,
	"dump":       VerbDump,
	"history":    VerbHistory,
	"clear":      VerbClear,
	"cls":        VerbClear,
	"help":       VerbHelp,
	`\h`:         VerbHelp,
	"?":          VerbHelp,
	"exit":       VerbExit,
	"quit":       VerbExit,
	`\q`:         VerbExit,
}

// Command is one parsed built-in command. Options holds the verb's typed
// options struct, already validated.
type Command struct {
	Verb     string
	Args     []string
	Options  any
	Warnings []string
	Line     string
}

// ResolveVerb maps the leading word(s) of a line to a verb. ok is false when
// the line is SQL.
func ResolveVerb(line string) (verb string, consumed int, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", 0, false
	}

	first := strings.ToLower(strings.TrimSuffix(fields[0], ";"))
	if first == "show" {
		if len(fields) < 2 {
			return "", 0, false
		}
		switch strings.ToLower(strings.TrimSuffix(fields[1], ";")) {
		case "databases", "schemas":
			return VerbShowDatabases, 2, true
		case "tables":
			return VerbShowTables, 2, true
		}
		return "", 0, false
	}

	verb, ok = aliases[first]
	if !ok {
		return "", 0, false
	}
	return verb, 1, true
}

// Parse turns a prompt line into a Command. It returns nil, nil for SQL.
func Parse(line string) (*Command, error) {
	line = strings.TrimSpace(line)
	verb, consumed, ok := ResolveVerb(line)
	if !ok {
		return nil, nil
	}

	parser := shellwords.NewParser()
	tokens, err := parser.Parse(line)
	if err != nil {
		return nil, quoteError(verb, fmt.Errorf("%w: %v", ErrInvalidOption, err))
	}
	// The parser stops at an unquoted ; & | < or > and drops the rest.
	if parser.Position >= 0 {
		if rest := strings.TrimSpace(string([]rune(line)[parser.Position:])); rest != ";" {
			return nil, quoteError(verb, fmt.Errorf("%w: unquoted %q cuts the command short", ErrInvalidOption, rest))
		}
	}
	tokens = trimTerminator(tokens[consumed:])

	cmd := &Command{Verb: verb, Line: line}
	if err := parseOptions(cmd, tokens); err != nil {
		return nil, err
	}
	return cmd, nil
}

func quoteError(verb string, err error) *CommandError {
	remedy := "quote arguments that contain spaces, quotes or any of ; & | < > ( )"
	if verb == VerbChart {
		remedy = `quote the SQL, e.g. chart line "SELECT day, SUM(total) FROM sales WHERE total > 0 GROUP BY day"`
	}
	return &CommandError{Verb: verb, Usage: usage[verb], Err: err, Remedy: remedy}
}

// trimTerminator drops a trailing ";" typed out of SQL habit.
func trimTerminator(tokens []string) []string {
	if len(tokens) == 0 {
		return tokens
	}
	last := len(tokens) - 1
	tokens[last] = strings.TrimSuffix(tokens[last], ";")
	if tokens[last] == "" {
		tokens = tokens[:last]
	}
	return tokens
}
