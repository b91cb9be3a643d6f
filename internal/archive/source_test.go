package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type stubS3 struct {
	objects map[string][]byte
	lastKey string
	err     error
}

func (s *stubS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	s.lastKey = aws.ToString(params.Key)
	if s.err != nil {
		return nil, s.err
	}
	body, ok := s.objects[s.lastKey]
	if !ok {
		return nil, errors.New("NoSuchKey: the specified key does not exist")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func TestS3SourceFetch(t *testing.T) {
	stub := &stubS3{objects: map[string][]byte{
		"archives/job-1.json": []byte(`[]`),
	}}
	source := NewS3Source(stub, "exports")

	data, err := source.FetchArchive(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("FetchArchive returned error: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("unexpected payload: %s", data)
	}
	if stub.lastKey != "archives/job-1.json" {
		t.Fatalf("unexpected key: %s", stub.lastKey)
	}
}

func TestS3SourceNotFound(t *testing.T) {
	source := NewS3Source(&stubS3{objects: map[string][]byte{}}, "exports")

	_, err := source.FetchArchive(context.Background(), "missing")
	if !errors.Is(err, ErrArchiveNotFound) {
		t.Fatalf("expected ErrArchiveNotFound, got %v", err)
	}
}

func TestFSSourceFetch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "job-2.json"), []byte(`{"conversations": []}`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	source := NewFSSource(dir)
	data, err := source.FetchArchive(context.Background(), "job-2")
	if err != nil {
		t.Fatalf("FetchArchive returned error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected payload bytes")
	}

	if _, err := source.FetchArchive(context.Background(), "absent"); !errors.Is(err, ErrArchiveNotFound) {
		t.Fatalf("expected ErrArchiveNotFound, got %v", err)
	}
}
