package shell

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/spf13/pflag"
)

const (
	DefaultChunkSize   = 1000
	DefaultSampleSize  = 100
	DefaultConnections = 4
	MaxConnections     = 32
	DefaultBins        = 10
	DefaultChartWidth  = 16.0
	DefaultChartHeight = 10.0
)

type CSVImportOptions struct {
	File        string
	Table       string
	CreateTable bool
	ChunkSize   int
	SampleSize  int
	Delimiter   rune
	MappingFile string
}

type URLImportOptions struct {
	URL         string
	Table       string
	CreateTable bool
	ChunkSize   int
	Connections int
	Keep        bool
}

type ChartOptions struct {
	Kind   models.ChartKind
	SQL    string
	Title  string
	Output string
	XLabel string
	YLabel string
	Bins   int
	Width  float64
	Height float64
}

// TableOptions serves analyze and describe.
type TableOptions struct {
	Table string
}

type UseOptions struct {
	Database string
}

type DumpOptions struct {
	Database string
	File     string
}

type HelpOptions struct {
	Topic string
}

// usage lines shown with CommandError and by help.
var usage = map[string]string{
	VerbCSVImport:     "csv_import <file> <table> [--create-table] [--chunk-size=N] [--sample-size=N] [--delimiter=C] [--mapping=file.json]",
	VerbURLImport:     "url_import <url> <table> [--create-table] [--chunk-size=N] [--connections=N] [--keep]",
	VerbChart:         `chart <line|bar|scatter|hist> "<sql>" [--output=file.png] [--title=T] [--xlabel=X] [--ylabel=Y] [--bins=N] [--width=CM] [--height=CM]`,
	VerbAnalyze:       "analyze <table>",
	VerbShowDatabases: `show databases  (\l)`,
	VerbShowTables:    `show tables  (\dt, .tables)`,
	VerbDescribe:      `describe <table>  (desc, \d, .schema)`,
	VerbUse:           `use <database>  (\c)`,
	VerbHealth:        "health",
	VerbDump:          "dump <database> [file.sql]",
	VerbHistory:       "history",
	VerbClear:         "clear  (cls)",
	VerbHelp:          `help [command]  (\h, ?)`,
	VerbExit:          `exit  (quit, \q)`,
}

// Usage returns the usage line of verb.
func Usage(verb string) string {
	return usage[verb]
}

func newFlagSet(verb string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(verb, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false
	return fs
}

// parseFlags drops unknown --flags with a warning, parses the rest into fs
// and returns the positionals.
func parseFlags(cmd *Command, fs *pflag.FlagSet, tokens []string) ([]string, error) {
	known := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "--") && len(tok) > 2 {
			name, _, _ := strings.Cut(tok[2:], "=")
			if fs.Lookup(name) == nil {
				cmd.Warnings = append(cmd.Warnings, fmt.Sprintf("ignoring unknown option --%s for %s", name, cmd.Verb))
				continue
			}
		}
		known = append(known, tok)
	}

	if err := fs.Parse(known); err != nil {
		return nil, commandError(cmd.Verb, err)
	}
	return fs.Args(), nil
}

func commandError(verb string, err error) *CommandError {
	return &CommandError{Verb: verb, Usage: usage[verb], Err: err}
}

// requireArgs checks the positional count; hi < 0 means unbounded.
func requireArgs(verb string, args []string, lo, hi int, names ...string) error {
	if len(args) < lo {
		return commandError(verb, fmt.Errorf("%w: %s", ErrMissingArgument, strings.Join(names[len(args):lo], ", ")))
	}
	if hi >= 0 && len(args) > hi {
		return commandError(verb, fmt.Errorf("%w: %s", ErrTooManyArguments, strings.Join(args[hi:], " ")))
	}
	return nil
}

// requireRange checks lo <= v and, when hi > 0, v <= hi.
func requireRange(verb, flag string, v, lo, hi int) error {
	switch {
	case hi > 0 && (v < lo || v > hi):
		return commandError(verb, fmt.Errorf("%w: --%s must be between %d and %d, got %d", ErrInvalidOption, flag, lo, hi, v))
	case v < lo:
		return commandError(verb, fmt.Errorf("%w: --%s must be at least %d, got %d", ErrInvalidOption, flag, lo, v))
	}
	return nil
}

func parseOptions(cmd *Command, tokens []string) error {
	fs := newFlagSet(cmd.Verb)

	switch cmd.Verb {
	case VerbCSVImport:
		opts := CSVImportOptions{}
		fs.BoolVar(&opts.CreateTable, "create-table", false, "create the table from the file's header")
		fs.IntVar(&opts.ChunkSize, "chunk-size", DefaultChunkSize, "rows per transaction")
		fs.IntVar(&opts.SampleSize, "sample-size", DefaultSampleSize, "rows sampled for type inference")
		delimiter := fs.String("delimiter", ",", "field delimiter")
		fs.StringVar(&opts.MappingFile, "mapping", "", "JSON file mapping CSV columns to table columns")

		args, err := parseFlags(cmd, fs, tokens)
		if err != nil {
			return err
		}
		if err := requireArgs(cmd.Verb, args, 2, 2, "file", "table"); err != nil {
			return err
		}
		if err := requireRange(cmd.Verb, "chunk-size", opts.ChunkSize, 1, 0); err != nil {
			return err
		}
		if err := requireRange(cmd.Verb, "sample-size", opts.SampleSize, 1, 0); err != nil {
			return err
		}
		if opts.Delimiter, err = parseDelimiter(*delimiter); err != nil {
			return commandError(cmd.Verb, err)
		}
		// A .tsv source picks tab unless a delimiter was given.
		if !fs.Changed("delimiter") {
			opts.Delimiter = 0
		}
		opts.File, opts.Table = args[0], args[1]
		cmd.Args, cmd.Options = args, opts

	case VerbURLImport:
		opts := URLImportOptions{}
		fs.BoolVar(&opts.CreateTable, "create-table", false, "create the table from the file's header")
		fs.IntVar(&opts.ChunkSize, "chunk-size", DefaultChunkSize, "rows per transaction")
		fs.IntVar(&opts.Connections, "connections", DefaultConnections, "parallel download connections")
		fs.BoolVar(&opts.Keep, "keep", false, "keep the downloaded file")

		args, err := parseFlags(cmd, fs, tokens)
		if err != nil {
			return err
		}
		if err := requireArgs(cmd.Verb, args, 2, 2, "url", "table"); err != nil {
			return err
		}
		if err := requireRange(cmd.Verb, "chunk-size", opts.ChunkSize, 1, 0); err != nil {
			return err
		}
		if c := clampConnections(opts.Connections); c != opts.Connections {
			cmd.Warnings = append(cmd.Warnings, fmt.Sprintf("--connections=%d is out of range, using %d", opts.Connections, c))
			opts.Connections = c
		}
		opts.URL, opts.Table = args[0], args[1]
		cmd.Args, cmd.Options = args, opts

	case VerbChart:
		opts := ChartOptions{}
		fs.StringVar(&opts.Output, "output", "", "image file (.png, .svg, .pdf)")
		fs.StringVar(&opts.Title, "title", "", "chart title")
		fs.StringVar(&opts.XLabel, "xlabel", "", "x axis label")
		fs.StringVar(&opts.YLabel, "ylabel", "", "y axis label")
		fs.IntVar(&opts.Bins, "bins", DefaultBins, "histogram bins")
		fs.Float64Var(&opts.Width, "width", DefaultChartWidth, "image width in cm")
		fs.Float64Var(&opts.Height, "height", DefaultChartHeight, "image height in cm")

		args, err := parseFlags(cmd, fs, tokens)
		if err != nil {
			return err
		}
		if err := requireArgs(cmd.Verb, args, 2, -1, "kind", "sql"); err != nil {
			return err
		}
		if opts.Kind, err = models.ParseChartKind(args[0]); err != nil {
			return commandError(cmd.Verb, fmt.Errorf("%w: %v", ErrInvalidOption, err))
		}
		if err := requireRange(cmd.Verb, "bins", opts.Bins, 1, 0); err != nil {
			return err
		}
		if opts.Width <= 0 || opts.Height <= 0 {
			return commandError(cmd.Verb, fmt.Errorf("%w: --width and --height must be positive", ErrInvalidOption))
		}
		// Unquoted SQL arrives as several words. Quotes inside it were
		// consumed by the tokenizer, so it must match the typed text.
		opts.SQL = strings.Join(args[1:], " ")
		if len(args) > 2 && !strings.Contains(strings.Join(strings.Fields(cmd.Line), " "), opts.SQL) {
			return quoteError(cmd.Verb, fmt.Errorf("%w: the SQL lost its quoting", ErrInvalidOption))
		}
		cmd.Args, cmd.Options = args, opts

	case VerbAnalyze, VerbDescribe:
		args, err := parseFlags(cmd, fs, tokens)
		if err != nil {
			return err
		}
		if err := requireArgs(cmd.Verb, args, 1, 1, "table"); err != nil {
			return err
		}
		cmd.Args, cmd.Options = args, TableOptions{Table: args[0]}

	case VerbUse:
		args, err := parseFlags(cmd, fs, tokens)
		if err != nil {
			return err
		}
		if err := requireArgs(cmd.Verb, args, 1, 1, "database"); err != nil {
			return err
		}
		cmd.Args, cmd.Options = args, UseOptions{Database: args[0]}

	case VerbDump:
		args, err := parseFlags(cmd, fs, tokens)
		if err != nil {
			return err
		}
		if err := requireArgs(cmd.Verb, args, 1, 2, "database", "file"); err != nil {
			return err
		}
		opts := DumpOptions{Database: args[0]}
		if len(args) > 1 {
			opts.File = args[1]
		}
		cmd.Args, cmd.Options = args, opts

	case VerbHelp:
		args, err := parseFlags(cmd, fs, tokens)
		if err != nil {
			return err
		}
		opts := HelpOptions{}
		if len(args) > 0 {
			opts.Topic = strings.Join(args, " ")
		}
		cmd.Args, cmd.Options = args, opts

	default:
		args, err := parseFlags(cmd, fs, tokens)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			cmd.Warnings = append(cmd.Warnings, fmt.Sprintf("%s takes no arguments; ignoring %s", cmd.Verb, strings.Join(args, " ")))
		}
		cmd.Args = args
	}
	return nil
}

func parseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case `\t`, "tab":
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: --delimiter must be a single character, got %q", ErrInvalidOption, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\n' || r == '\r' {
		return 0, fmt.Errorf("%w: %q cannot be used as a delimiter", ErrInvalidOption, s)
	}
	return r, nil
}

func clampConnections(n int) int {
	return max(1, min(n, MaxConnections))
}
