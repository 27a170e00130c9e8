package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/spf13/cobra"
)

// errSetupQuit ends the guided setup without connecting.
var errSetupQuit = errors.New("setup cancelled")

// firstRun reports whether the program was started bare on a terminal,
// which offers the guided connection setup. DBCLI_* connection settings
// in the environment count as a configured start.
func (a *app) firstRun(cmd *cobra.Command, args []string) bool {
	if cmd != cmd.Root() || len(args) > 0 || cmd.Flags().NFlag() > 0 {
		return false
	}
	for _, key := range []string{"host", "port", "user", "password", "database", "file"} {
		if a.v.IsSet(key) {
			return false
		}
	}
	return a.interactive()
}

func printQuickHelp(w io.Writer, prog Program) {
	fmt.Fprintln(w, "Quick start:")
	fmt.Fprintln(w, "  -H <host>     server host (default localhost)")
	fmt.Fprintln(w, "  -u <user>     user name (default root)")
	fmt.Fprintln(w, "  -p <pass>     password (prompted for when left out)")
	fmt.Fprintln(w, "  -d <db>       database to use")
	fmt.Fprintln(w, "  -f <file>     database file for sqlite and duckdb")
	fmt.Fprintln(w, "  --help        full help")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	if len(prog.Engines) > 1 {
		fmt.Fprintf(w, "  %s mysql -H localhost -u root\n", prog.Name)
		fmt.Fprintf(w, "  %s postgresql -H myserver -u postgres -d myapp\n", prog.Name)
		fmt.Fprintf(w, "  %s sqlite -f /path/to/database.db\n", prog.Name)
		fmt.Fprintf(w, "  %s duckdb -f analytics.duckdb\n", prog.Name)
	} else {
		fmt.Fprintf(w, "  %s -H localhost -u root -p\n", prog.Name)
		fmt.Fprintf(w, "  %s -H db.internal -u app -d shop \"SHOW TABLES\"\n", prog.Name)
	}
	fmt.Fprintln(w)
}

// setup walks a first-time user through the connection parameters.
// errSetupQuit means the user chose help or quit.
func (a *app) setup(w io.Writer) (Config, error) {
	fmt.Fprintln(w, "Welcome! No connection was given on the command line.")
	fmt.Fprintln(w, "Let's get you connected to your database.")
	fmt.Fprintln(w)

	for {
		choice, err := a.ask("Would you like to (s)etup a connection or see (h)elp? [s/h]: ")
		if err != nil {
			return Config{}, err
		}
		switch strings.ToLower(choice) {
		case "", "s", "setup":
		case "h", "help":
			printQuickHelp(w, a.prog)
			return Config{}, errSetupQuit
		case "q", "quit", "exit":
			return Config{}, errSetupQuit
		default:
			continue
		}
		break
	}

	fmt.Fprintln(w, "Connection setup. Type 'h' for help, 'q' to quit.")
	kind, err := a.askEngine(w)
	if err != nil {
		return Config{}, err
	}

	p := models.ConnectionParams{Kind: kind}
	if kind.FileBased() {
		err = a.askFile(w, &p)
	} else {
		err = a.askServer(w, &p)
	}
	if err != nil {
		return Config{}, err
	}

	return Config{
		Params:       p.WithDefaults(),
		History:      a.v.GetString("history"),
		passwordRead: !kind.FileBased(),
	}, nil
}

// ask reads one trimmed answer. End of input quits the setup.
func (a *app) ask(prompt string) (string, error) {
	answer, err := a.readLine(prompt)
	if errors.Is(err, io.EOF) {
		return "", errSetupQuit
	}
	if err != nil {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func (a *app) askEngine(w io.Writer) (models.EngineKind, error) {
	if len(a.prog.Engines) == 1 {
		return a.prog.Engines[0], nil
	}

	prompt := fmt.Sprintf("Database type [%s] (default: %s): ", strings.ReplaceAll(engineList(a.prog.Engines), "|", "/"), a.prog.Engines[0])
	for {
		answer, err := a.ask(prompt)
		if err != nil {
			return "", err
		}
		switch strings.ToLower(answer) {
		case "":
			return a.prog.Engines[0], nil
		case "h", "help":
			printQuickHelp(w, a.prog)
			continue
		case "q", "quit", "exit":
			return "", errSetupQuit
		}
		kind, err := models.ParseEngineKind(answer)
		if err == nil {
			return kind, nil
		}
		fmt.Fprintf(w, "Invalid database type. Choose one of %s.\n", strings.ReplaceAll(engineList(a.prog.Engines), "|", ", "))
	}
}

func (a *app) askServer(w io.Writer, p *models.ConnectionParams) error {
	defaults := models.ConnectionParams{Kind: p.Kind}.WithDefaults()

	host, err := a.ask(fmt.Sprintf("Host (default: %s): ", defaults.Host))
	if err != nil {
		return err
	}
	p.Host = host

	for {
		port, err := a.ask(fmt.Sprintf("Port (default: %d): ", defaults.Port))
		if err != nil {
			return err
		}
		if port == "" {
			break
		}
		n, err := strconv.Atoi(port)
		if err == nil && n > 0 && n < 65536 {
			p.Port = n
			break
		}
		fmt.Fprintf(w, "Invalid port %q.\n", port)
	}

	if p.User, err = a.ask(fmt.Sprintf("Username (default: %s): ", defaults.User)); err != nil {
		return err
	}
	if p.Database, err = a.ask("Database name (optional): "); err != nil {
		return err
	}

	resolved := p.WithDefaults()
	password, err := a.readPassword(fmt.Sprintf("Password for %s@%s: ", resolved.User, resolved.Host))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	p.Password = password
	return nil
}

func (a *app) askFile(w io.Writer, p *models.ConnectionParams) error {
	for {
		file, err := a.ask(fmt.Sprintf("%s file path (or 'memory' for in-memory): ", p.Kind))
		if err != nil {
			return err
		}
		switch strings.ToLower(file) {
		case "", "memory", models.MemoryDatabase:
			p.File = models.MemoryDatabase
			return nil
		}

		if _, err := os.Stat(file); err == nil {
			p.File = file
			return nil
		}

		create, err := a.ask("File doesn't exist. Create new? (y/n): ")
		if err != nil {
			return err
		}
		if strings.EqualFold(create, "y") || strings.EqualFold(create, "yes") {
			p.File, p.Create = file, true
			return nil
		}
		fmt.Fprintln(w, "Please give an existing file path, a new one to create, or 'memory'.")
	}
}
