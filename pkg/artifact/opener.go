package artifact

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Source reads the raw bytes of an artifact from one backend.
type Source interface {
	Open(ctx context.Context, loc Location) (io.ReadCloser, error)
}

// Opener dispatches locations to their Source and strips compression.
type Opener struct {
	mu      sync.Mutex
	sources map[Scheme]Source
	logger  *slog.Logger
}

// OpenerOption configures an Opener.
type OpenerOption func(*Opener)

// WithSource overrides the Source used for scheme.
func WithSource(scheme Scheme, src Source) OpenerOption {
	return func(o *Opener) {
		o.sources[scheme] = src
	}
}

// WithLogger sets the Opener's logger.
func WithLogger(l *slog.Logger) OpenerOption {
	return func(o *Opener) {
		o.logger = l
	}
}

// NewOpener returns an Opener with file, s3 and minio sources. Remote clients
// are created on first use.
func NewOpener(opts ...OpenerOption) *Opener {
	o := &Opener{
		sources: map[Scheme]Source{
			SchemeFile:  fileSource{},
			SchemeS3:    &s3Source{},
			SchemeMinio: &minioSource{clients: map[string]*minio.Client{}},
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open returns a reader over the decompressed content of loc.
func (o *Opener) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	o.mu.Lock()
	src, ok := o.sources[loc.Scheme]
	o.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no source for scheme %q", ErrLocation, loc.Scheme)
	}

	o.logger.Debug("opening artifact", "location", loc.Raw)

	rc, err := src.Open(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrFetch, loc.Raw, err)
	}

	comp, _ := Detect(loc.Name())
	out, err := decompress(rc, comp)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %s: %w", ErrDecode, loc.Raw, comp, err)
	}
	return out, nil
}

// LocalPath returns a path on disk holding the decompressed content of loc.
// Uncompressed local files are returned as-is; anything else is spooled to a
// temporary file that cleanup removes.
func (o *Opener) LocalPath(ctx context.Context, loc Location) (path string, cleanup func(), err error) {
	comp, _ := Detect(loc.Name())
	if loc.IsLocalFile() && comp == CompressionNone {
		if _, err := os.Stat(loc.Path); err != nil {
			return "", nil, fmt.Errorf("%w %s: %w", ErrFetch, loc.Raw, err)
		}
		return loc.Path, func() {}, nil
	}

	rc, err := o.Open(ctx, loc)
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()

	f, err := os.CreateTemp("", "rxrank-artifact-*")
	if err != nil {
		return "", nil, fmt.Errorf("%w %s: creating spool file: %w", ErrFetch, loc.Raw, err)
	}
	cleanup = func() { os.Remove(f.Name()) }

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("%w %s: spooling: %w", ErrFetch, loc.Raw, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%w %s: spooling: %w", ErrFetch, loc.Raw, err)
	}

	return f.Name(), cleanup, nil
}

type fileSource struct{}

func (fileSource) Open(_ context.Context, loc Location) (io.ReadCloser, error) {
	return os.Open(loc.Path)
}

// s3Source reads objects with the default AWS credential chain.
type s3Source struct {
	once   sync.Once
	client *s3.Client
	err    error
}

func (s *s3Source) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	s.once.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			s.err = fmt.Errorf("loading aws config: %w", err)
			return
		}
		s.client = s3.NewFromConfig(cfg)
	})
	if s.err != nil {
		return nil, s.err
	}

	in := &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	}
	if loc.VersionID != "" {
		in.VersionId = aws.String(loc.VersionID)
	}

	resp, err := s.client.GetObject(ctx, in)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// minioSource reads objects from S3-compatible endpoints using
// MINIO_ACCESS_KEY and MINIO_SECRET_KEY.
type minioSource struct {
	mu      sync.Mutex
	clients map[string]*minio.Client
}

func (s *minioSource) client(loc Location) (*minio.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[loc.Host]; ok {
		return c, nil
	}

	c, err := minio.New(loc.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), ""),
		Secure: loc.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	s.clients[loc.Host] = c
	return c, nil
}

func (s *minioSource) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	c, err := s.client(loc)
	if err != nil {
		return nil, err
	}

	if _, err := c.StatObject(ctx, loc.Bucket, loc.Key, minio.StatObjectOptions{}); err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, fmt.Errorf("%s/%s: %w", loc.Bucket, loc.Key, os.ErrNotExist)
		}
		return nil, err
	}

	return c.GetObject(ctx, loc.Bucket, loc.Key, minio.GetObjectOptions{})
}
