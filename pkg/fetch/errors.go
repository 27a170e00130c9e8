package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JayJamieson/db-cli/pkg/utils"
)

// ErrInvalidURL is returned before any download is attempted.
var ErrInvalidURL = errors.New("invalid URL")

// DownloadError reports a failed fetch. Any partial file has already been
// removed when it is returned.
type DownloadError struct {
	URL    string
	Method string
	// ExitCode is the accelerator's exit status, or 0.
	ExitCode int
	Err      error
}

func (e *DownloadError) Error() string {
	msg := fmt.Sprintf("download of %s failed", e.URL)
	if e.Method != "" {
		msg += " (" + e.Method + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DownloadError) Unwrap() error { return e.Err }

// StatusCode is the HTTP status that failed the download, or 0.
func (e *DownloadError) StatusCode() int {
	var se *utils.StatusError
	if errors.As(e.Err, &se) {
		return se.StatusCode
	}
	return 0
}

func (e *DownloadError) Hint() string {
	switch code := e.StatusCode(); {
	case code == http.StatusNotFound:
		return "the server has no file at that URL; check the path"
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "the server refused access; use a public or pre-signed URL"
	case code >= 500:
		return "the server failed; try again later"
	}

	switch {
	case errors.Is(e.Err, ErrInvalidURL):
		return "use an absolute http:// or https:// URL"
	case errors.Is(e.Err, context.Canceled):
		return "the download was cancelled and the partial file removed"
	case errors.Is(e.Err, context.DeadlineExceeded):
		return "the download timed out; try again or lower --connections"
	case e.ExitCode != 0:
		return "aria2c failed; see its output above, or try --connections=1"
	}
	return "check the URL and your network connection"
}
