package importer

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type Compression int

const (
	CompressionNone Compression = iota
	CompressionGZ
	CompressionBZ2
	CompressionXZ
	CompressionZSTD
)

var compressionExtensions = map[string]Compression{
	".gz":  CompressionGZ,
	".bz2": CompressionBZ2,
	".xz":  CompressionXZ,
	".zst": CompressionZSTD,
}

// DetectCompression picks the compression from the path's last extension and
// returns the path with that extension removed.
func DetectCompression(path string) (Compression, string) {
	ext := strings.ToLower(filepath.Ext(path))
	if c, ok := compressionExtensions[ext]; ok {
		return c, path[:len(path)-len(ext)]
	}
	return CompressionNone, path
}

// decompress wraps reader in a decompressor. The returned close func
// releases decoder resources only; the caller still closes the file.
func decompress(reader io.Reader, c Compression) (io.Reader, func() error, error) {
	switch c {
	case CompressionNone:
		return reader, func() error { return nil }, nil

	case CompressionGZ:
		gzReader, err := gzip.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzReader, gzReader.Close, nil

	case CompressionBZ2:
		return bzip2.NewReader(reader), func() error { return nil }, nil

	case CompressionXZ:
		xzReader, err := xz.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xzReader, func() error { return nil }, nil

	case CompressionZSTD:
		decoder, err := zstd.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return decoder, func() error {
			decoder.Close()
			return nil
		}, nil
	}

	return nil, nil, fmt.Errorf("unsupported compression type: %d", c)
}
