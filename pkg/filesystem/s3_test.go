package filesystem

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3Client struct {
	objects map[string][]byte
}

func (f *fakeS3Client) key(bucket, key *string) string {
	return aws.ToString(bucket) + "/" + aws.ToString(key)
}

func (f *fakeS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	raw, ok := f.objects[f.key(params.Bucket, params.Key)]
	if !ok {
		return nil, &testNotFoundError{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(raw))),
		LastModified:  aws.Time(time.Unix(1700000000, 0)),
	}, nil
}

func (f *fakeS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	raw, ok := f.objects[f.key(params.Bucket, params.Key)]
	if !ok {
		return nil, &testNotFoundError{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(raw)),
		ContentLength: aws.Int64(int64(len(raw))),
	}, nil
}

type testNotFoundError struct{}

func (*testNotFoundError) Error() string { return "NotFound" }

func TestS3FileSystem(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "open object",
			test: func(t *testing.T) {
				fsys := &S3FileSystem{client: &fakeS3Client{objects: map[string][]byte{
					"archives/legacy.zip": []byte("archive-bytes"),
				}}}
				reader, err := fsys.Open(context.Background(), "archives/legacy.zip")
				if err != nil {
					t.Fatalf("Open() error = %v", err)
				}
				defer reader.Close()
				raw, err := io.ReadAll(reader)
				if err != nil {
					t.Fatalf("could not read object, error: %s", err)
				}
				if string(raw) != "archive-bytes" {
					t.Errorf("read %q, want %q", raw, "archive-bytes")
				}
			},
		},
		{
			name: "stat object",
			test: func(t *testing.T) {
				fsys := &S3FileSystem{client: &fakeS3Client{objects: map[string][]byte{
					"archives/sub/legacy.tar.gz": []byte("archive-bytes"),
				}}}
				info, err := fsys.Stat(context.Background(), "archives/sub/legacy.tar.gz")
				if err != nil {
					t.Fatalf("Stat() error = %v", err)
				}
				if info.Name() != "legacy.tar.gz" {
					t.Errorf("Stat().Name() = %q, want = %q", info.Name(), "legacy.tar.gz")
				}
				if info.Size() != int64(len("archive-bytes")) {
					t.Errorf("Stat().Size() = %d, want = %d", info.Size(), len("archive-bytes"))
				}
			},
		},
		{
			name: "bucket only",
			test: func(t *testing.T) {
				fsys := &S3FileSystem{client: &fakeS3Client{}}
				if _, err := fsys.Open(context.Background(), "archives"); err == nil {
					t.Errorf("Open() error = nil, want error for bucket-only path")
				}
			},
		},
		{
			name: "missing object",
			test: func(t *testing.T) {
				fsys := &S3FileSystem{client: &fakeS3Client{}}
				if _, err := fsys.Stat(context.Background(), "archives/nope.zip"); err == nil {
					t.Errorf("Stat() error = nil, want error")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}
