package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/JayJamieson/db-cli/pkg/db"
	"github.com/JayJamieson/db-cli/pkg/handlers"
	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/JayJamieson/db-cli/pkg/shell"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	Version = "2.0.0"

	envPrefix = "DBCLI"

	// promptPassword is the value of a bare -p; it asks on the terminal.
	promptPassword = "\x00prompt"
)

var ErrPasswordRequired = errors.New("password required")

// Program describes one binary. The first engine is used when no engine
// is named on the command line.
type Program struct {
	Name    string
	Short   string
	Engines []models.EngineKind
}

var (
	DBCLI = Program{
		Name:    "dbcli",
		Short:   "Interactive shell for MySQL, PostgreSQL, SQLite and DuckDB",
		Engines: models.EngineKinds,
	}
	MySQLCLI = Program{
		Name:    "mysqlcli",
		Short:   "Interactive MySQL shell",
		Engines: []models.EngineKind{models.EngineMySQL},
	}
)

var engineAliases = map[models.EngineKind][]string{
	models.EngineMySQL:      {"mariadb"},
	models.EnginePostgreSQL: {"postgres", "pg"},
	models.EngineSQLite:     {"sqlite3"},
	models.EngineDuckDB:     {"duck"},
}

// Config is the resolved command line and environment.
type Config struct {
	Params   models.ConnectionParams
	Query    string
	Raw      bool
	NoBanner bool
	Verbose  bool
	History  string

	askPassword  bool
	passwordRead bool
}

type app struct {
	prog Program
	v    *viper.Viper

	// readPassword, readLine and interactive are replaced in tests.
	readPassword func(prompt string) (string, error)
	readLine     func(prompt string) (string, error)
	interactive  func() bool
}

// NewCommand builds the cobra command tree for prog. Flags are bound to
// viper so DBCLI_* environment variables fill in anything not given.
func NewCommand(prog Program) *cobra.Command {
	return newApp(prog).command()
}

func newApp(prog Program) *app {
	return &app{
		prog:         prog,
		v:            viper.New(),
		readPassword: readPasswordTerminal,
		readLine:     readLineStdin,
		interactive:  stdinIsTerminal,
	}
}

func (a *app) command() *cobra.Command {
	prog := a.prog
	root := &cobra.Command{
		Use:           prog.Name + " [flags] [query]",
		Short:         prog.Short,
		Version:       Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runE(prog.Engines[0]),
	}
	if len(prog.Engines) > 1 {
		root.Use = prog.Name + " [" + engineList(prog.Engines) + "] [flags] [query]"
		root.Long = fmt.Sprintf("%s.\n\nThe engine defaults to %s when none is given.", prog.Short, prog.Engines[0])

		for _, kind := range prog.Engines {
			root.AddCommand(&cobra.Command{
				Use:           string(kind) + " [flags] [query]",
				Aliases:       engineAliases[kind],
				Short:         "Connect to " + string(kind),
				Args:          cobra.ArbitraryArgs,
				SilenceUsage:  true,
				SilenceErrors: true,
				RunE:          a.runE(kind),
			})
		}
	}

	a.bindFlags(root.PersistentFlags())
	return root
}

func engineList(kinds []models.EngineKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, "|")
}

func (a *app) bindFlags(flags *pflag.FlagSet) {
	flags.StringP("host", "H", "", "server host (default localhost)")
	flags.IntP("port", "P", 0, "server port (default 3306 for mysql, 5432 for postgresql)")
	flags.StringP("user", "u", "", "user name (default root for mysql, postgres for postgresql)")
	flags.StringP("password", "p", "", "password; a bare -p prompts for it")
	flags.Lookup("password").NoOptDefVal = promptPassword
	flags.StringP("database", "d", "", "database to use")
	flags.StringP("file", "f", "", "database file for sqlite and duckdb (default in-memory)")
	flags.Bool("create", false, "create the database file if it does not exist")
	flags.Bool("ssl-disabled", false, "connect without TLS")
	flags.String("charset", "", "connection character set for mysql (default utf8mb4)")
	flags.Bool("raw", false, "print results as tab-separated lines")
	flags.Bool("no-banner", false, "do not print the startup banner")
	flags.BoolP("verbose", "v", false, "log debug output")

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	// Flag registration above is static; BindPFlags only fails on a nil set.
	_ = a.v.BindPFlags(flags)
	_ = a.v.BindEnv("history")
	a.v.SetDefault("history", defaultHistoryFile())
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dbcli_history")
}

// config resolves flags over environment over defaults.
func (a *app) config(kind models.EngineKind, args []string) Config {
	cfg := Config{
		Params: models.ConnectionParams{
			Kind:        kind,
			Host:        a.v.GetString("host"),
			Port:        a.v.GetInt("port"),
			User:        a.v.GetString("user"),
			Password:    a.v.GetString("password"),
			Database:    a.v.GetString("database"),
			File:        a.v.GetString("file"),
			Create:      a.v.GetBool("create"),
			SSLDisabled: a.v.GetBool("ssl-disabled"),
			Charset:     a.v.GetString("charset"),
		},
		Query:    strings.TrimSpace(strings.Join(args, " ")),
		Raw:      a.v.GetBool("raw"),
		NoBanner: a.v.GetBool("no-banner"),
		Verbose:  a.v.GetBool("verbose"),
		History:  a.v.GetString("history"),
	}
	if cfg.Params.Password == promptPassword {
		cfg.Params.Password = ""
		cfg.askPassword = true
	}
	cfg.Params = cfg.Params.WithDefaults()
	return cfg
}

func (a *app) runE(kind models.EngineKind) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if a.firstRun(cmd, args) {
			cfg, err := a.setup(cmd.OutOrStdout())
			if errors.Is(err, errSetupQuit) {
				return nil
			}
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		}

		cfg := a.config(kind, args)
		return a.run(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	logger := log.New("dbcli")
	logger.SetOutput(w)
	logger.SetHeader("${level} ${prefix}")
	logger.SetLevel(log.WARN)
	if verbose {
		logger.SetLevel(log.DEBUG)
	}
	return logger
}

func (a *app) run(ctx context.Context, cfg Config, stdout, stderr io.Writer) error {
	logger := newLogger(stderr, cfg.Verbose)
	printer := shell.NewPrinter(stdout, !cfg.Raw)

	if err := a.resolvePassword(&cfg); err != nil {
		return err
	}

	if cfg.Query != "" {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
	}

	logger.Debugf("connecting to %s at %s", cfg.Params.Kind, cfg.Params.Target())
	session, err := db.NewSession(ctx, cfg.Params)
	if err != nil {
		return err
	}
	defer session.Close()

	h := handlers.NewHandler(session, printer, logger)
	h.Raw = cfg.Raw

	if cfg.Query != "" {
		return shell.NewSession(nil, h, printer, logger).Execute(ctx, cfg.Query)
	}

	if !cfg.NoBanner {
		printBanner(ctx, printer, session)
	}

	rl, err := shell.NewReader(cfg.History, shell.NewCompleter(h.Tables))
	if err != nil {
		return err
	}
	defer rl.Close()

	if err := shell.NewSession(rl, h, printer, logger).Run(ctx); err != nil {
		return err
	}
	printer.Info("Bye")
	return nil
}

// resolvePassword prompts for a missing server password in interactive
// mode and refuses to guess one in single-query mode.
func (a *app) resolvePassword(cfg *Config) error {
	p := &cfg.Params
	if p.Kind.FileBased() || p.Password != "" || cfg.passwordRead {
		return nil
	}

	if cfg.Query != "" {
		return &passwordError{user: p.User}
	}
	if !cfg.askPassword && !a.interactive() {
		return nil
	}

	password, err := a.readPassword(fmt.Sprintf("Enter password for %s@%s: ", p.User, p.Host))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	p.Password = password
	return nil
}

type passwordError struct {
	user string
}

func (e *passwordError) Error() string {
	return fmt.Sprintf("%s for user %q in single-query mode", ErrPasswordRequired, e.user)
}

func (e *passwordError) Unwrap() error { return ErrPasswordRequired }

func (e *passwordError) Hint() string {
	return "pass it with -pSECRET, --password=SECRET or DBCLI_PASSWORD, or start the interactive shell"
}

// passwordArgs binds the word after a bare -p or --password as its value,
// so "-p secret" works like "-psecret". A -p followed by another flag or
// by nothing still prompts.
func passwordArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(out, args[i:]...)
		}
		if (arg == "-p" || arg == "--password") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, "--password="+args[i+1])
			i++
			continue
		}
		out = append(out, arg)
	}
	return out
}

func execute(ctx context.Context, cmd *cobra.Command, args []string) error {
	cmd.SetArgs(passwordArgs(args))
	return cmd.ExecuteContext(ctx)
}

// Main runs prog with the process arguments and returns the exit code.
func Main(prog Program) int {
	cmd := NewCommand(prog)
	if err := execute(context.Background(), cmd, os.Args[1:]); err != nil {
		shell.NewPrinter(os.Stderr, true).Error(err)
		return 1
	}
	return 0
}
