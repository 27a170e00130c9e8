package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()

	e := echo.New()
	e.HideBanner = true
	e.GET("/data.csv", func(c echo.Context) error {
		return c.String(http.StatusOK, "id,name\n1,ada\n")
	})
	e.GET("/gone.csv", func(c echo.Context) error {
		return c.String(http.StatusNotFound, "not found")
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadFile(t *testing.T) {
	t.Parallel()
	srv := newFixtureServer(t)

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		dest := filepath.Join(t.TempDir(), "data.csv")

		n, err := DownloadFile(context.Background(), srv.URL+"/data.csv", dest)
		require.NoError(t, err)
		assert.Equal(t, int64(len("id,name\n1,ada\n")), n)

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "id,name\n1,ada\n", string(data))
	})

	t.Run("status error leaves no file", func(t *testing.T) {
		t.Parallel()
		dest := filepath.Join(t.TempDir(), "gone.csv")

		_, err := DownloadFile(context.Background(), srv.URL+"/gone.csv", dest)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusNotFound, se.StatusCode)
		assert.NoFileExists(t, dest)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		dest := filepath.Join(t.TempDir(), "data.csv")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := DownloadFile(ctx, srv.URL+"/data.csv", dest)
		require.Error(t, err)
		assert.NoFileExists(t, dest)
	})
}

func TestTempPath(t *testing.T) {
	t.Parallel()

	a := TempPath("dbcli-download", ".csv.gz")
	b := TempPath("dbcli-download", ".csv.gz")

	assert.NotEqual(t, a, b)
	assert.Equal(t, os.TempDir(), filepath.Dir(a))
	assert.True(t, strings.HasPrefix(filepath.Base(a), "dbcli-download-"))
	assert.True(t, strings.HasSuffix(a, ".csv.gz"))
}

func TestURLExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/data/sales.csv", ".csv"},
		{"https://example.com/sales.CSV?token=1", ".csv"},
		{"https://example.com/sales.csv.gz", ".csv.gz"},
		{"https://example.com/sales.tsv.zst", ".tsv.zst"},
		{"https://example.com/dump.gz", ".csv.gz"},
		{"https://example.com/book.xlsx", ".xlsx"},
		{"https://example.com/export", ".csv"},
		{"https://example.com/", ".csv"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, URLExtension(tt.url))
		})
	}
}

func TestHumanBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512B", HumanBytes(512))
	assert.Equal(t, "1.50KiB", HumanBytes(1536))
	assert.Equal(t, "2.00MiB/s", HumanRate(2*1024*1024))
}
