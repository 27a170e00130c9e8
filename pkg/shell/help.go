package shell

import (
	"fmt"
	"strings"

	"github.com/chzyer/readline"
)

var helpOrder = []string{
	VerbShowDatabases,
	VerbShowTables,
	VerbDescribe,
	VerbUse,
	VerbAnalyze,
	VerbCSVImport,
	VerbURLImport,
	VerbChart,
	VerbHealth,
	VerbDump,
	VerbHistory,
	VerbClear,
	VerbHelp,
	VerbExit,
}

var helpDetail = map[string]string{
	VerbCSVImport: `Import a CSV, TSV, compressed CSV (.gz .bz2 .xz .zst) or XLSX file.
  --create-table   create the table from the header and a sample of rows
  --chunk-size=N   rows per transaction (default 1000)
  --sample-size=N  rows sampled for type inference (default 100)
  --delimiter=C    field delimiter (default ",", tab for .tsv)
  --mapping=FILE   JSON object of CSV column -> table column`,
	VerbURLImport: `Download a file and import it like csv_import. Uses aria2c when installed.
  --create-table   create the table from the header and a sample of rows
  --chunk-size=N   rows per transaction (default 1000)
  --connections=N  parallel connections for aria2c, 1-32 (default 4)
  --keep           keep the downloaded file`,
	VerbChart: `Plot a query. line/scatter: first column is x, the rest are y series.
bar: label column then value column. hist: one numeric column.
  --output=FILE    .png, .svg, .pdf or .jpg (default: temp directory)
  --bins=N         histogram bins (default 10)
  --width/--height image size in cm (default 16 x 10)`,
	VerbAnalyze: "Row count plus per-column non-null, null and distinct counts with min and max.",
	VerbDump:    "Write a mysqldump of the database to a file (MySQL only).",
	VerbHealth:  "Ping the server and show its version and the current database.",
}

// HelpText lists every command, or details one when topic names a verb or alias.
func HelpText(topic string) string {
	if topic != "" {
		verb, _, ok := ResolveVerb(topic)
		if !ok {
			return fmt.Sprintf("No help for %q. Type help for the list of commands.\n", topic)
		}
		text := usage[verb] + "\n"
		if detail, ok := helpDetail[verb]; ok {
			text += "\n" + detail + "\n"
		}
		return text
	}

	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, verb := range helpOrder {
		fmt.Fprintf(&b, "  %s\n", usage[verb])
	}
	b.WriteString("\nAnything else is SQL and runs when a line ends with ';'.\n")
	b.WriteString("Type help <command> for details.\n")
	return b.String()
}

var sqlKeywords = []string{
	"SELECT", "FROM", "WHERE", "GROUP", "ORDER", "HAVING", "LIMIT",
	"INSERT", "INTO", "VALUES", "UPDATE", "SET", "DELETE",
	"CREATE", "DROP", "ALTER", "TABLE", "JOIN", "WITH", "EXPLAIN", "DISTINCT",
}

// NewCompleter completes verbs, SQL keywords and, where a table is expected,
// the names returned by tables.
func NewCompleter(tables func() []string) *readline.PrefixCompleter {
	dynamic := func(string) []string {
		if tables == nil {
			return nil
		}
		return tables()
	}

	items := []readline.PrefixCompleterInterface{
		readline.PcItem("show",
			readline.PcItem("databases"),
			readline.PcItem("tables"),
		),
		readline.PcItem("describe", readline.PcItemDynamic(dynamic)),
		readline.PcItem("desc", readline.PcItemDynamic(dynamic)),
		readline.PcItem("analyze", readline.PcItemDynamic(dynamic)),
		readline.PcItem("chart",
			readline.PcItem("line"),
			readline.PcItem("bar"),
			readline.PcItem("scatter"),
			readline.PcItem("hist"),
		),
		readline.PcItem("csv_import"),
		readline.PcItem("url_import"),
		readline.PcItem("use"),
		readline.PcItem("health"),
		readline.PcItem("dump"),
		readline.PcItem("history"),
		readline.PcItem("clear"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	}
	for _, kw := range sqlKeywords {
		items = append(items, readline.PcItem(kw), readline.PcItem(strings.ToLower(kw)))
	}
	return readline.NewPrefixCompleter(items...)
}
