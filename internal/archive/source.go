package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrArchiveNotFound indicates no archive exists for the requested job.
var ErrArchiveNotFound = errors.New("archive: archive not found")

// Source fetches raw archive bytes for a job. Upload and storage lifecycle
// live outside this service; the pipeline only consumes bytes.
type Source interface {
	FetchArchive(ctx context.Context, jobID string) ([]byte, error)
}

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads uploaded archives from S3 under archives/{jobID}.json.
type S3Source struct {
	bucket string
	client S3API
}

// NewS3Source creates an archive source backed by S3.
func NewS3Source(client S3API, bucket string) *S3Source {
	if client == nil {
		panic("archive: s3 client cannot be nil")
	}
	if bucket == "" {
		panic("archive: bucket cannot be empty")
	}
	return &S3Source{bucket: bucket, client: client}
}

// FetchArchive downloads the archive object for the job.
func (s *S3Source) FetchArchive(ctx context.Context, jobID string) ([]byte, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, errors.New("archive: jobID required")
	}

	key := fmt.Sprintf("archives/%s.json", jobID)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundErr(err) {
			return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, key)
		}
		return nil, fmt.Errorf("archive: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", key, err)
	}
	return data, nil
}

// isNotFoundErr checks whether the error is an S3 missing-key error.
func isNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") || strings.Contains(msg, "404")
}

// FSSource reads archives from a local directory, for development and tests.
type FSSource struct {
	dir string
}

// NewFSSource creates a filesystem-backed archive source.
func NewFSSource(dir string) *FSSource {
	if dir == "" {
		panic("archive: directory cannot be empty")
	}
	return &FSSource{dir: dir}
}

// FetchArchive reads {dir}/{jobID}.json.
func (s *FSSource) FetchArchive(_ context.Context, jobID string) ([]byte, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, errors.New("archive: jobID required")
	}

	path := filepath.Join(s.dir, jobID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, path)
		}
		return nil, fmt.Errorf("archive: read %s: %w", path, err)
	}
	return data, nil
}
