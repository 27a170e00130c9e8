package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"

	"github.com/chzyer/readline"
	"github.com/labstack/gommon/log"
)

const continuationPrompt = "    -> "

// ErrPanic wraps a recovered panic from a command.
var ErrPanic = errors.New("internal error")

// LineReader is the part of *readline.Instance the loop needs.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// Executor runs what the dispatcher recognized: built-in commands and SQL.
type Executor interface {
	Run(ctx context.Context, cmd *Command) error
	Query(ctx context.Context, sql string) error
	Prompt() string
}

type Session struct {
	reader  LineReader
	exec    Executor
	printer *Printer
	logger  *log.Logger

	history []string
	pending []string

	// notify derives the per-command context; Ctrl-C cancels it.
	notify func(context.Context) (context.Context, context.CancelFunc)
}

func NewSession(reader LineReader, exec Executor, printer *Printer, logger *log.Logger) *Session {
	return &Session{
		reader:  reader,
		exec:    exec,
		printer: printer,
		logger:  logger,
		notify: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
}

// Run reads lines until exit, end of input or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		s.reader.SetPrompt(s.prompt())

		line, err := s.reader.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			s.pending = nil
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("failed to read input: %w", err)
		}

		if !s.Feed(ctx, line) {
			return nil
		}
	}
	return nil
}

func (s *Session) prompt() string {
	if len(s.pending) > 0 {
		return continuationPrompt
	}
	return s.exec.Prompt()
}

// Feed handles one input line and reports whether the loop should go on.
// Built-in commands run immediately; SQL runs once a line ends with ';'.
func (s *Session) Feed(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)

	if len(s.pending) == 0 {
		if trimmed == "" {
			return true
		}
		if verb, _, ok := ResolveVerb(trimmed); ok {
			s.remember(trimmed)
			if verb == VerbExit {
				return false
			}
			s.run(ctx, trimmed)
			return true
		}
	}

	s.pending = append(s.pending, line)
	if !strings.HasSuffix(trimmed, ";") {
		return true
	}

	stmt := strings.TrimSpace(strings.Join(s.pending, "\n"))
	s.pending = nil
	s.remember(stmt)
	s.run(ctx, stmt)
	return true
}

func (s *Session) run(ctx context.Context, input string) {
	cmdCtx, stop := s.notify(ctx)
	defer stop()

	if err := s.Execute(cmdCtx, input); err != nil {
		s.printer.Error(err)
	}
}

// Execute runs one complete input: a built-in command or a SQL statement.
func (s *Session) Execute(ctx context.Context, input string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debugf("panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	cmd, err := Parse(input)
	if err != nil {
		return err
	}
	if cmd == nil {
		return s.exec.Query(ctx, input)
	}

	for _, w := range cmd.Warnings {
		s.logger.Warn(w)
	}

	switch cmd.Verb {
	case VerbExit:
		return nil
	case VerbHelp:
		s.printer.Print(HelpText(cmd.Options.(HelpOptions).Topic))
		return nil
	case VerbHistory:
		s.printHistory()
		return nil
	case VerbClear:
		s.printer.Clear()
		return nil
	}
	return s.exec.Run(ctx, cmd)
}

func (s *Session) remember(entry string) {
	s.history = append(s.history, entry)
}

// History returns the commands and statements entered this session.
func (s *Session) History() []string {
	return append([]string(nil), s.history...)
}

func (s *Session) printHistory() {
	var b strings.Builder
	for i, entry := range s.history {
		fmt.Fprintf(&b, "%5d  %s\n", i+1, strings.ReplaceAll(entry, "\n", " "))
	}
	s.printer.Print(b.String())
}

// NewReader opens the interactive line editor. historyFile may be empty.
func NewReader(historyFile string, completer readline.AutoCompleter) (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		HistorySearchFold: true,
		AutoComplete:      completer,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start line editor: %w", err)
	}
	return rl, nil
}
