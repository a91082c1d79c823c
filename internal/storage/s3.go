package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures the S3 client. Endpoint and PathStyle target MinIO
// and other S3-compatible services.
type S3Options struct {
	Region    string
	Endpoint  string
	PathStyle bool
}

// NewS3Client builds a client using static credentials from
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN.
func NewS3Client(opts S3Options) *s3.Client {
	creds := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	})

	return s3.New(s3.Options{
		Region:       opts.Region,
		Credentials:  aws.NewCredentialsCache(creds),
		BaseEndpoint: nilIfEmpty(opts.Endpoint),
		UsePathStyle: opts.PathStyle,
	})
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

type S3Provider struct {
	client *s3.Client
	bucket string
}

func NewS3Provider(client *s3.Client, bucket string) (*S3Provider, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket name is required")
	}
	return &S3Provider{client: client, bucket: bucket}, nil
}

// Create starts a multipart upload fed through a pipe. Abort closes the pipe
// with an error, which makes the uploader abandon the upload.
func (p *S3Provider) Create(ctx context.Context, key, contentType string) (Writer, <-chan error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, failed(fmt.Errorf("%w: %q", err, key))
	}

	reader, writer := io.Pipe()
	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)

		uploader := manager.NewUploader(p.client, func(u *manager.Uploader) {
			u.PartSize = 10 * 1024 * 1024
			u.Concurrency = 5
		})

		slog.Info("Starting S3 upload", "bucket", p.bucket, "key", clean)
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(clean),
			Body:        reader,
			ContentType: nilIfEmpty(contentType),
		})
		_ = reader.CloseWithError(err)

		if err != nil {
			slog.Error("S3 upload failed", "key", clean, "error", err)
			errChan <- fmt.Errorf("s3 upload failed: %w", err)
			return
		}
		slog.Info("S3 upload finished", "key", clean)
		errChan <- nil
	}()

	return &pipeWriter{PipeWriter: writer}, errChan
}

type pipeWriter struct {
	*io.PipeWriter
	once sync.Once
}

func (w *pipeWriter) Abort(cause error) {
	w.once.Do(func() { _ = w.CloseWithError(fmt.Errorf("export aborted: %w", cause)) })
}

func (w *pipeWriter) Close() error {
	var err error
	w.once.Do(func() { err = w.PipeWriter.Close() })
	return err
}

func (p *S3Provider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(clean),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object %s: %w", clean, err)
	}
	return out.Body, nil
}

func (p *S3Provider) URL(key string) string {
	return fmt.Sprintf("s3://%s/%s", p.bucket, key)
}
