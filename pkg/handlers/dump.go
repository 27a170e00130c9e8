package handlers

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/JayJamieson/db-cli/pkg/db"
	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/JayJamieson/db-cli/pkg/shell"
	"github.com/JayJamieson/db-cli/pkg/utils"
)

// Dump writes a mysqldump of a database. The password goes through
// MYSQL_PWD so it stays off the process list.
func (h *Handler) Dump(ctx context.Context, opts shell.DumpOptions) error {
	params := h.Session.Params
	if params.Kind != models.EngineMySQL {
		return withHint(
			fmt.Errorf("dump is not available for %s: %w", params.Kind, db.ErrUnsupported),
			"use the engine's own export tool, or COPY/EXPORT statements",
		)
	}

	bin, err := exec.LookPath(h.DumpTool)
	if err != nil {
		return withHint(fmt.Errorf("failed to find %s: %w", h.DumpTool, err), "install the MySQL client tools")
	}

	file := opts.File
	if file == "" {
		file = fmt.Sprintf("%s_%s.sql", opts.Database, time.Now().Format("20060102_150405"))
	}

	args := []string{
		"--host=" + params.Host,
		"--port=" + strconv.Itoa(params.Port),
		"--user=" + params.User,
		"--single-transaction",
		"--routines",
		"--triggers",
		"--result-file=" + file,
		opts.Database,
	}
	h.logger.Debugf("running %s %v", bin, args)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = os.Environ()
	if params.Password != "" {
		cmd.Env = append(cmd.Env, "MYSQL_PWD="+params.Password)
	}
	cmd.Stdout = h.printer.Writer()
	cmd.Stderr = h.printer.Writer()

	startTime := time.Now()
	if err := cmd.Run(); err != nil {
		os.Remove(file)
		return fmt.Errorf("failed to dump %s: %w", opts.Database, err)
	}

	size := int64(0)
	if info, err := os.Stat(file); err == nil {
		size = info.Size()
	}
	h.printer.Success("Dumped %s to %s (%s in %.2fs)", opts.Database, file, utils.HumanBytes(size), time.Since(startTime).Seconds())
	return nil
}
