package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/JayJamieson/db-cli/pkg/utils"
	"github.com/labstack/gommon/log"
)

const (
	MethodAria2c = "aria2c"
	MethodHTTP   = "http"

	DefaultConnections = 4
	MaxConnections     = 32

	// aria2c rejects more than 16 connections per server.
	maxConnectionsPerServer = 16

	tempPrefix = "dbcli-download"
)

type Fetcher struct {
	logger *log.Logger

	// Output receives the accelerator's console output.
	Output io.Writer
	// Dir holds downloaded files.
	Dir string

	lookPath func(string) (string, error)
}

func New(logger *log.Logger) *Fetcher {
	return &Fetcher{
		logger:   logger,
		Output:   os.Stderr,
		Dir:      os.TempDir(),
		lookPath: exec.LookPath,
	}
}

// ClampConnections limits n to 1..MaxConnections.
func ClampConnections(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxConnections:
		return MaxConnections
	}
	return n
}

// Fetch downloads rawURL into a fresh temp file, using aria2c when it is on
// PATH and a single HTTP stream otherwise. The caller owns the returned file.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, connections int) (*models.FetchResult, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, &DownloadError{URL: rawURL, Err: err}
	}

	dest := utils.TempPathIn(f.Dir, tempPrefix, utils.URLExtension(rawURL))
	connections = ClampConnections(connections)

	startTime := time.Now()
	method := MethodHTTP

	if bin, err := f.lookPath(MethodAria2c); err == nil {
		method = MethodAria2c
		if err := f.runAria2c(ctx, bin, rawURL, dest, connections); err != nil {
			return nil, err
		}
	} else {
		f.logger.Debugf("aria2c not found, downloading %s over a single HTTP stream", rawURL)
		if _, err := utils.DownloadFile(ctx, rawURL, dest); err != nil {
			return nil, &DownloadError{URL: rawURL, Method: MethodHTTP, Err: err}
		}
	}

	info, err := os.Stat(dest)
	if err != nil {
		os.Remove(dest)
		return nil, &DownloadError{URL: rawURL, Method: method, Err: fmt.Errorf("failed to stat download: %w", err)}
	}

	elapsed := time.Since(startTime)
	result := &models.FetchResult{
		Path:    dest,
		Bytes:   info.Size(),
		Elapsed: elapsed,
		Method:  method,
	}
	if elapsed > 0 {
		result.BytesPerSec = float64(info.Size()) / elapsed.Seconds()
	}
	return result, nil
}

func (f *Fetcher) runAria2c(ctx context.Context, bin, rawURL, dest string, connections int) error {
	args := []string{
		"-x", strconv.Itoa(min(connections, maxConnectionsPerServer)),
		"-s", strconv.Itoa(connections),
		"-k1M",
		"--allow-overwrite=true",
		"--auto-file-renaming=false",
		"-d", filepath.Dir(dest),
		"-o", filepath.Base(dest),
		rawURL,
	}
	f.logger.Debugf("running %s %v", bin, args)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = f.Output
	cmd.Stderr = f.Output

	if err := cmd.Run(); err != nil {
		removePartial(dest)

		dlErr := &DownloadError{URL: rawURL, Method: MethodAria2c, Err: err}
		if ctxErr := ctx.Err(); ctxErr != nil {
			dlErr.Err = ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			dlErr.ExitCode = exitErr.ExitCode()
		}
		return dlErr
	}
	return nil
}

func removePartial(dest string) {
	os.Remove(dest)
	os.Remove(dest + ".aria2")
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}
