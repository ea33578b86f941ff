package artifact

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies an artifact's outer compression layer.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// Format identifies an artifact's content encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

var compressionExts = map[string]Compression{
	".gz":   CompressionGzip,
	".gzip": CompressionGzip,
	".zst":  CompressionZstd,
	".zstd": CompressionZstd,
	".lz4":  CompressionLZ4,
}

// Detect splits a file name into its compression layer and content format.
// Names without a recognized content extension are treated as JSON.
func Detect(name string) (Compression, Format) {
	lower := strings.ToLower(name)

	comp := CompressionNone
	for ext, c := range compressionExts {
		if strings.HasSuffix(lower, ext) {
			comp = c
			lower = strings.TrimSuffix(lower, ext)
			break
		}
	}

	switch {
	case strings.HasSuffix(lower, ".db"),
		strings.HasSuffix(lower, ".sqlite"),
		strings.HasSuffix(lower, ".sqlite3"):
		return comp, FormatSQLite
	default:
		return comp, FormatJSON
	}
}

// decompress wraps rc with a reader for comp. Closing the result closes rc.
func decompress(rc io.ReadCloser, comp Compression) (io.ReadCloser, error) {
	switch comp {
	case CompressionGzip:
		zr, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, rc}}, nil

	case CompressionZstd:
		zr, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr.IOReadCloser(), rc}}, nil

	case CompressionLZ4:
		return &stackedCloser{Reader: lz4.NewReader(rc), closers: []io.Closer{rc}}, nil

	default:
		return rc, nil
	}
}

type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
