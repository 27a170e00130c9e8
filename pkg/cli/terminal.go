package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/JayJamieson/db-cli/pkg/db"
	"github.com/JayJamieson/db-cli/pkg/shell"
	"golang.org/x/term"
)

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readPasswordTerminal reads without echo from a terminal and falls back to
// a plain line for piped input.
func readPasswordTerminal(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var stdin = bufio.NewReader(os.Stdin)

func readLineStdin(prompt string) (string, error) {
	fmt.Fprint(os.Stdout, prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printBanner(ctx context.Context, printer *shell.Printer, session *db.Session) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	printer.Printf("db-cli %s: MySQL, PostgreSQL, SQLite and DuckDB from one prompt\n", Version)

	version, err := session.Engine.Version(ctx)
	if err != nil {
		version = "unknown version"
	}
	printer.Success("Connected to %s at %s (%s)", session.Params.Kind, session.Params.Target(), version)
	printer.Printf("Type 'help' for commands, 'exit' to quit. SQL runs when a line ends with ';'.\n\n")
}
