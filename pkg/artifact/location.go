package artifact

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Scheme names supported artifact backends.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeMinio Scheme = "minio"
)

// Location is a parsed artifact address.
//
//	/abs/path/embeddings.json
//	file:///abs/path/embeddings.json.zst
//	s3://bucket/key/embeddings.db?versionId=abc
//	minio://host:9000/bucket/key/mappings.json.gz?secure=true
type Location struct {
	Raw       string
	Scheme    Scheme
	Host      string
	Bucket    string
	Key       string
	Path      string
	VersionID string
	Secure    bool
}

// ParseLocation parses raw into a Location. Plain paths are file locations.
func ParseLocation(raw string) (Location, error) {
	if strings.TrimSpace(raw) == "" {
		return Location{}, fmt.Errorf("%w: empty location", ErrLocation)
	}

	if !strings.Contains(raw, "://") {
		return Location{Raw: raw, Scheme: SchemeFile, Path: filepath.Clean(raw)}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %w", ErrLocation, err)
	}

	loc := Location{Raw: raw, Scheme: Scheme(u.Scheme)}

	switch loc.Scheme {
	case SchemeFile:
		loc.Path = filepath.FromSlash(u.Path)
		if loc.Path == "" {
			return Location{}, fmt.Errorf("%w: %q has no path", ErrLocation, raw)
		}

	case SchemeS3:
		loc.Bucket = u.Host
		loc.Key = strings.TrimPrefix(u.Path, "/")
		loc.VersionID = u.Query().Get("versionId")
		if loc.Bucket == "" || loc.Key == "" {
			return Location{}, fmt.Errorf("%w: %q needs s3://bucket/key", ErrLocation, raw)
		}

	case SchemeMinio:
		loc.Host = u.Host
		bucket, key, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		loc.Bucket = bucket
		loc.Key = key
		loc.Secure = u.Query().Get("secure") == "true"
		if loc.Host == "" || loc.Bucket == "" || loc.Key == "" {
			return Location{}, fmt.Errorf("%w: %q needs minio://host/bucket/key", ErrLocation, raw)
		}

	default:
		return Location{}, fmt.Errorf("%w: unsupported scheme %q", ErrLocation, u.Scheme)
	}

	return loc, nil
}

// Name returns the final path element, which carries the format and
// compression extensions.
func (l Location) Name() string {
	if l.Scheme == SchemeFile {
		return filepath.Base(l.Path)
	}
	return path.Base(l.Key)
}

// IsLocalFile reports whether the artifact can be opened from disk directly.
func (l Location) IsLocalFile() bool {
	return l.Scheme == SchemeFile
}

func (l Location) String() string {
	return l.Raw
}
