package utils

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/bytes"
)

var compressedExtensions = map[string]bool{
	".gz":  true,
	".bz2": true,
	".xz":  true,
	".zst": true,
}

// TempPath returns a fresh path in the system temp directory named
// <prefix>-<timestamp>-<id><ext>.
func TempPath(prefix, ext string) string {
	return TempPathIn(os.TempDir(), prefix, ext)
}

func TempPathIn(dir, prefix, ext string) string {
	id := strings.SplitN(uuid.NewString(), "-", 2)[0]
	name := fmt.Sprintf("%s-%s-%s%s", prefix, time.Now().Format("20060102-150405"), id, ext)
	return filepath.Join(dir, name)
}

// URLExtension returns the file extension of the URL path, keeping the inner
// extension of compressed files (".csv.gz"). It defaults to ".csv".
func URLExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".csv"
	}

	base := path.Base(u.Path)
	ext := strings.ToLower(path.Ext(base))
	if ext == "" || ext == "." || base == "/" {
		return ".csv"
	}

	if compressedExtensions[ext] {
		inner := strings.ToLower(path.Ext(strings.TrimSuffix(base, path.Ext(base))))
		if inner == "" {
			inner = ".csv"
		}
		return inner + ext
	}
	return ext
}

// HumanBytes formats a byte count such as 1.50MB.
func HumanBytes(n int64) string {
	return bytes.Format(n)
}

// HumanRate formats a throughput in bytes per second.
func HumanRate(bytesPerSec float64) string {
	return bytes.Format(int64(bytesPerSec)) + "/s"
}
