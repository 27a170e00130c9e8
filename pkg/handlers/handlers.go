package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/JayJamieson/db-cli/pkg/chart"
	"github.com/JayJamieson/db-cli/pkg/db"
	"github.com/JayJamieson/db-cli/pkg/fetch"
	"github.com/JayJamieson/db-cli/pkg/importer"
	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/JayJamieson/db-cli/pkg/render"
	"github.com/JayJamieson/db-cli/pkg/shell"
	"github.com/JayJamieson/db-cli/pkg/utils"
	"github.com/labstack/gommon/log"
)

// Handler runs the shell's built-in commands and SQL against one session.
type Handler struct {
	Session *db.Session

	importer *importer.Importer
	fetcher  *fetch.Fetcher
	printer  *shell.Printer
	logger   *log.Logger

	// Raw prints results as tab-separated lines without summaries.
	Raw bool
	// DumpTool is the mysqldump binary used by dump.
	DumpTool string
}

func NewHandler(session *db.Session, printer *shell.Printer, logger *log.Logger) *Handler {
	h := &Handler{
		Session:  session,
		fetcher:  fetch.New(logger),
		printer:  printer,
		logger:   logger,
		DumpTool: "mysqldump",
	}
	h.importer = importer.New(logger, h.reportProgress)
	return h
}

var _ shell.Executor = (*Handler)(nil)

func (h *Handler) engine() db.Engine { return h.Session.Engine }

// Prompt shows the engine and the current database, e.g. "mysql [shop]> ".
func (h *Handler) Prompt() string {
	schema := h.engine().CurrentSchema()
	if schema == "" {
		schema = "(none)"
	}
	return fmt.Sprintf("%s [%s]> ", h.engine().Kind(), schema)
}

func (h *Handler) Query(ctx context.Context, sql string) error {
	rs, err := h.engine().Execute(ctx, sql)
	if err != nil {
		return err
	}
	h.printResult(rs)
	return nil
}

func (h *Handler) Run(ctx context.Context, cmd *shell.Command) error {
	switch cmd.Verb {
	case shell.VerbShowDatabases:
		return h.ShowDatabases(ctx)
	case shell.VerbShowTables:
		return h.ShowTables(ctx)
	case shell.VerbDescribe:
		return h.Describe(ctx, cmd.Options.(shell.TableOptions))
	case shell.VerbAnalyze:
		return h.Analyze(ctx, cmd.Options.(shell.TableOptions))
	case shell.VerbCSVImport:
		return h.CSVImport(ctx, cmd.Options.(shell.CSVImportOptions))
	case shell.VerbURLImport:
		return h.URLImport(ctx, cmd.Options.(shell.URLImportOptions))
	case shell.VerbChart:
		return h.Chart(ctx, cmd.Options.(shell.ChartOptions))
	case shell.VerbUse:
		return h.Use(ctx, cmd.Options.(shell.UseOptions))
	case shell.VerbHealth:
		return h.Health(ctx)
	case shell.VerbDump:
		return h.Dump(ctx, cmd.Options.(shell.DumpOptions))
	}
	return fmt.Errorf("command %q is not handled", cmd.Verb)
}

func (h *Handler) printResult(rs *models.ResultSet) {
	h.printer.Print(render.Result(rs, h.Raw))
}

func (h *Handler) ShowDatabases(ctx context.Context) error {
	rs, err := h.engine().Databases(ctx)
	if err != nil {
		return fmt.Errorf("failed to list databases: %w", err)
	}
	h.printResult(rs)
	return nil
}

func (h *Handler) ShowTables(ctx context.Context) error {
	rs, err := h.engine().Tables(ctx)
	if errors.Is(err, db.ErrNoDatabase) {
		return withHint(err, "select one with: use <database>")
	}
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	h.printResult(rs)
	return nil
}

func (h *Handler) Describe(ctx context.Context, opts shell.TableOptions) error {
	rs, err := h.engine().Describe(ctx, opts.Table)
	if err != nil {
		return tableError(opts.Table, err)
	}
	h.printResult(rs)
	return nil
}

func (h *Handler) Analyze(ctx context.Context, opts shell.TableOptions) error {
	rs, err := db.Analyze(ctx, h.engine(), opts.Table)
	if err != nil {
		return tableError(opts.Table, err)
	}
	h.printResult(rs)
	return nil
}

func tableError(table string, err error) error {
	if errors.Is(err, db.ErrTableNotFound) {
		return withHint(err, "list tables with: show tables")
	}
	return fmt.Errorf("failed to inspect %s: %w", table, err)
}

// Tables lists table names for tab completion. Errors yield no suggestions.
func (h *Handler) Tables() []string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rs, err := h.engine().Tables(ctx)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if len(row) > 0 {
			names = append(names, render.Format(row[0]))
		}
	}
	return names
}

func (h *Handler) Use(ctx context.Context, opts shell.UseOptions) error {
	err := h.Session.Use(ctx, opts.Database)
	if errors.Is(err, db.ErrUnsupported) {
		return withHint(
			fmt.Errorf("%s has a single database: %w", h.engine().Kind(), err),
			"open another file with -f/--file instead",
		)
	}
	if err != nil {
		return err
	}
	h.printer.Success("Database changed to %s", opts.Database)
	return nil
}

func (h *Handler) Health(ctx context.Context) error {
	startTime := time.Now()
	if err := h.engine().Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping %s: %w", h.engine().Kind(), err)
	}
	latency := time.Since(startTime)

	version, err := h.engine().Version(ctx)
	if err != nil {
		return err
	}

	schema := h.engine().CurrentSchema()
	if schema == "" {
		schema = "(none)"
	}

	h.printResult(&models.ResultSet{
		Columns: []string{"Check", "Value"},
		Rows: [][]any{
			{"engine", string(h.engine().Kind())},
			{"target", h.Session.Params.Target()},
			{"ping", latency.Round(time.Microsecond).String()},
			{"version", version},
			{"database", schema},
		},
		Message: "connection healthy",
		Elapsed: time.Since(startTime),
	})
	return nil
}

func (h *Handler) reportProgress(p importer.Progress) {
	h.printer.Info("chunk %d: %d row(s) committed (%.0f rows/s)", p.Chunk, p.Rows, p.RowsPerSec)
}

func (h *Handler) CSVImport(ctx context.Context, opts shell.CSVImportOptions) error {
	job := models.ImportJob{
		Source:      opts.File,
		Table:       opts.Table,
		CreateTable: opts.CreateTable,
		ChunkSize:   opts.ChunkSize,
		SampleSize:  opts.SampleSize,
		Delimiter:   opts.Delimiter,
	}
	if opts.MappingFile != "" {
		mapping, err := importer.LoadMapping(opts.MappingFile)
		if err != nil {
			return withHint(err, `the mapping file must be a JSON object such as {"csv column": "table_column"}`)
		}
		job.Mapping = mapping
	}
	return h.runImport(ctx, job)
}

func (h *Handler) runImport(ctx context.Context, job models.ImportJob) error {
	res, err := h.importer.Import(ctx, h.engine(), job)
	if err != nil {
		return err
	}

	if res.TableCreated {
		h.printer.Success("Created table %s", res.Table)
	}
	h.printer.Success("Imported %d row(s) into %s in %.2fs (%.0f rows/s, %d chunk(s))",
		res.RowsImported, res.Table, res.Elapsed.Seconds(), res.RowsPerSec, res.Chunks)
	return nil
}

// URLImport downloads the file first; a failed download never touches the
// database.
func (h *Handler) URLImport(ctx context.Context, opts shell.URLImportOptions) error {
	h.printer.Info("Downloading %s", opts.URL)

	fetched, err := h.fetcher.Fetch(ctx, opts.URL, opts.Connections)
	if err != nil {
		return err
	}
	if opts.Keep {
		defer h.printer.Info("Kept download at %s", fetched.Path)
	} else {
		defer os.Remove(fetched.Path)
	}

	h.printer.Success("Downloaded %s with %s in %.2fs (%s)",
		utils.HumanBytes(fetched.Bytes), fetched.Method, fetched.Elapsed.Seconds(), utils.HumanRate(fetched.BytesPerSec))

	return h.runImport(ctx, models.ImportJob{
		Source:      fetched.Path,
		Table:       opts.Table,
		CreateTable: opts.CreateTable,
		ChunkSize:   opts.ChunkSize,
	})
}

func (h *Handler) Chart(ctx context.Context, opts shell.ChartOptions) error {
	res, err := chart.Make(ctx, h.engine(), models.ChartRequest{
		Kind:   opts.Kind,
		SQL:    opts.SQL,
		Output: opts.Output,
		Title:  opts.Title,
		XLabel: opts.XLabel,
		YLabel: opts.YLabel,
		Bins:   opts.Bins,
		Width:  opts.Width,
		Height: opts.Height,
	})
	if err != nil {
		return err
	}
	h.printer.Success("Wrote %s chart with %d point(s) in %d series to %s", opts.Kind, res.Points, res.Series, res.Output)
	return nil
}

// hintError attaches a remediation hint to an error that has none.
type hintError struct {
	err  error
	hint string
}

func withHint(err error, hint string) error {
	return &hintError{err: err, hint: hint}
}

func (e *hintError) Error() string { return e.err.Error() }

func (e *hintError) Unwrap() error { return e.err }

func (e *hintError) Hint() string { return e.hint }
