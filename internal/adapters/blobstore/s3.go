package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ewilliams-labs/chromatone/backend/internal/adapters/wavfile"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/ports"
)

// S3API is the subset of *s3.Client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Config describes the bucket and, for LocalStack or MinIO, a custom endpoint.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3Client builds an S3 client from the default AWS chain, overriding
// credentials and endpoint when they are configured.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""))
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blobstore: load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3 stores waveforms as objects under bucket/prefix.
type S3 struct {
	cli    S3API
	bucket string
	prefix string
	tmpDir string
}

// compile-time interface assertion
var _ ports.WaveformStore = (*S3)(nil)

func NewS3(cli S3API, bucket, prefix string) (*S3, error) {
	if cli == nil {
		return nil, errors.New("blobstore: s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("blobstore: bucket is required")
	}
	return &S3{cli: cli, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *S3) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Save encodes to a temp file first: the WAV header is patched after the
// samples are written, and a seekable body lets the SDK sign the payload.
func (s *S3) Save(ctx context.Context, key string, w domain.Waveform) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.tmpDir, "chromatone-*"+Extension)
	if err != nil {
		return fmt.Errorf("%w: blobstore: create temp file: %v", domain.ErrStorage, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := wavfile.Encode(tmp, w); err != nil {
		return fmt.Errorf("%w: blobstore: %v", domain.ErrStorage, err)
	}
	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("%w: blobstore: size temp file: %v", domain.ErrStorage, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: blobstore: rewind temp file: %v", domain.ErrStorage, err)
	}

	if _, err := s.cli.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          tmp,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(wavfile.ContentType),
	}); err != nil {
		return fmt.Errorf("%w: blobstore: put %s: %v", domain.ErrStorage, key, err)
	}
	return nil
}

func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	out, err := s.cli.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: blobstore: get %s: %v", domain.ErrStorage, key, err)
	}
	return out.Body, nil
}

// Delete removes the object. S3 deletes are idempotent, so existence is
// checked first to report domain.ErrNotFound like the local store.
func (s *S3) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	objKey := aws.String(s.objectKey(key))
	if _, err := s.cli.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: objKey}); err != nil {
		if isNotFound(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("%w: blobstore: head %s: %v", domain.ErrStorage, key, err)
	}
	if _, err := s.cli.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: objKey}); err != nil {
		return fmt.Errorf("%w: blobstore: delete %s: %v", domain.ErrStorage, key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *s3types.NotFound
	return errors.As(err, &notFound)
}
