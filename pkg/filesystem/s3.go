package filesystem

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/logging"
)

// S3Client abstracts the S3 client methods we use
type S3Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds the configuration for S3/Minio archive sources
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Insecure        bool
	UsePathStyle    bool
}

// S3FileSystem reads staged archives from S3/Minio buckets.
type S3FileSystem struct {
	client S3Client
	config S3Config
}

// noOpLogger implements logging.Logger and discards all logs
type noOpLogger struct{}

func (noOpLogger) Logf(logging.Classification, string, ...any) {}

func NewS3FileSystem(ctx context.Context, cfg S3Config) (fsys *S3FileSystem, err error) {
	var opts []func(*config.LoadOptions) error

	// Disable SDK log
	opts = append(opts, config.WithClientLogMode(0), config.WithLogger(noOpLogger{}))
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.Insecure {
		httpClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, //nolint:gosec // configuration chosen by user
				},
			},
		}
		opts = append(opts, config.WithHTTPClient(httpClient))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return
	}

	clientOpts := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.UsePathStyle
			o.ClientLogMode = 0
			o.Logger = noOpLogger{}
		},
	}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	fsys = &S3FileSystem{
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		config: cfg,
	}
	return
}

// parsePath splits path into bucket and key
func (s *S3FileSystem) parsePath(name string) (bucket, key string, err error) {
	name = strings.TrimPrefix(name, "/")
	parts := strings.SplitN(name, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		err = errors.New("invalid path: bucket name required")
		return
	}
	bucket = parts[0]
	if len(parts) > 1 {
		key = parts[1]
	}
	return
}

// s3FileInfo implements fs.FileInfo for S3 objects
type s3FileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (fi *s3FileInfo) Name() string       { return fi.name }
func (fi *s3FileInfo) Size() int64        { return fi.size }
func (fi *s3FileInfo) Mode() fs.FileMode  { return 0o644 }
func (fi *s3FileInfo) ModTime() time.Time { return fi.modTime }
func (fi *s3FileInfo) IsDir() bool        { return false }
func (fi *s3FileInfo) Sys() any           { return nil }

func (s *S3FileSystem) Open(ctx context.Context, name string) (reader io.ReadCloser, err error) {
	bucket, key, err := s.parsePath(name)
	if err != nil {
		return
	}
	if key == "" {
		err = errors.New("cannot open bucket as file")
		return
	}
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return
	}
	reader = result.Body
	return
}

func (s *S3FileSystem) Stat(ctx context.Context, name string) (info fs.FileInfo, err error) {
	bucket, key, err := s.parsePath(name)
	if err != nil {
		return
	}
	if key == "" {
		err = errors.New("cannot stat bucket as file")
		return
	}
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	respErr := new(awshttp.ResponseError)
	switch {
	case err == nil:
	case errors.As(err, &respErr) && respErr.Response.StatusCode == http.StatusNotFound:
		err = errors.Join(fs.ErrNotExist, err)
		return
	default:
		return
	}
	info = &s3FileInfo{
		name:    path.Base(key),
		size:    aws.ToInt64(result.ContentLength),
		modTime: aws.ToTime(result.LastModified),
	}
	return
}

func (s *S3FileSystem) IsLocal() bool {
	return false
}
