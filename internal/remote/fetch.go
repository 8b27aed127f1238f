// Package remote moves encrypted snapshot files to and from S3-compatible
// object storage such as Cloudflare R2.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fernet/fernet-go"
)

// ObjectStore is the subset of the S3 client used here.
type ObjectStore interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config is the connection to an S3-compatible endpoint.
type S3Config struct {
	URL       string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds a path-style client for cfg. An empty region means "auto".
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.URL != "" {
			o.BaseEndpoint = aws.String(cfg.URL)
		}
		o.UsePathStyle = true
	}), nil
}

// Fetcher reads and writes objects in one bucket. Objects are Fernet
// encrypted when Key is set.
type Fetcher struct {
	Store  ObjectStore
	Bucket string
	Key    *fernet.Key
}

// Fetch downloads object and decrypts it.
func (f *Fetcher) Fetch(ctx context.Context, object string) ([]byte, error) {
	start := time.Now()
	out, err := f.Store.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.Bucket),
		Key:    aws.String(object),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", f.Bucket, object, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", f.Bucket, object, err)
	}
	if f.Key != nil {
		if data, err = Decrypt(data, f.Key); err != nil {
			return nil, fmt.Errorf("%s/%s: %w", f.Bucket, object, err)
		}
	}
	slog.InfoContext(ctx, "Fetched remote object",
		"bucket", f.Bucket,
		"object", object,
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())
	return data, nil
}

// FetchToFile downloads object into path, replacing it atomically.
func (f *Fetcher) FetchToFile(ctx context.Context, object, path string) error {
	data, err := f.Fetch(ctx, object)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// Put encrypts data and uploads it as object.
func (f *Fetcher) Put(ctx context.Context, object string, data []byte) error {
	body := data
	if f.Key != nil {
		var err error
		if body, err = Encrypt(data, f.Key); err != nil {
			return err
		}
	}
	if _, err := f.Store.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(f.Bucket),
		Key:    aws.String(object),
		Body:   bytes.NewReader(body),
	}); err != nil {
		return fmt.Errorf("put %s/%s: %w", f.Bucket, object, err)
	}
	slog.InfoContext(ctx, "Uploaded remote object", "bucket", f.Bucket, "object", object, "bytes", len(body))
	return nil
}

// PutFile uploads the file at path as object.
func (f *Fetcher) PutFile(ctx context.Context, object, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return f.Put(ctx, object, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
