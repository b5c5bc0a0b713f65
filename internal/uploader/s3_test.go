package uploader

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.lorenzomilicia.dev/imgup/internal/encoder"
)

// MockS3 keeps objects in memory
type MockS3 struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Puts    int
	FailKey string
}

func NewMockS3() *MockS3 {
	return &MockS3{Objects: make(map[string][]byte)}
}

func (m *MockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[aws.ToString(in.Key)] = data
	m.Puts++
	return &s3.PutObjectOutput{}, nil
}

func (m *MockS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *MockS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &s3.DeleteObjectsOutput{}
	for _, obj := range in.Delete.Objects {
		key := aws.ToString(obj.Key)
		if key == m.FailKey {
			out.Errors = append(out.Errors, types.Error{Key: obj.Key, Code: aws.String("AccessDenied")})
			continue
		}
		delete(m.Objects, key)
	}
	return out, nil
}

func TestS3Gateway_Upload(t *testing.T) {
	mock := NewMockS3()
	g := newS3Gateway(mock, "bucket", "https://images.example.com/", "notes")

	job := Job{
		Name:     "shot.png",
		MIMEType: "image/png",
		Payload:  encoder.DataURL("image/png", []byte("fake png bytes")),
	}

	res := g.Upload(context.Background(), job)
	if !res.OK {
		t.Fatalf("upload failed: %s", res.Message)
	}
	if !strings.HasPrefix(res.URL, "https://images.example.com/notes/") || !strings.HasSuffix(res.URL, ".png") {
		t.Errorf("unexpected URL %q", res.URL)
	}

	// Same content maps to the same object and is not uploaded again
	again := g.Upload(context.Background(), job)
	if again.URL != res.URL {
		t.Errorf("URL changed: %q vs %q", again.URL, res.URL)
	}
	if mock.Puts != 1 {
		t.Errorf("Puts = %d, want 1", mock.Puts)
	}

	key := strings.TrimPrefix(res.URL, "https://images.example.com/")
	if string(mock.Objects[key]) != "fake png bytes" {
		t.Errorf("stored %q", mock.Objects[key])
	}
}

func TestS3Gateway_UploadInvalidPayload(t *testing.T) {
	g := newS3Gateway(NewMockS3(), "bucket", "https://images.example.com", "")

	res := g.Upload(context.Background(), Job{Name: "x.png", Payload: "data:image/png;base64,@@@"})
	if res.OK {
		t.Fatal("expected failure for undecodable payload")
	}
}

func TestS3Gateway_Delete(t *testing.T) {
	mock := NewMockS3()
	mock.Objects["notes/a.png"] = []byte("a")
	mock.Objects["notes/b.png"] = []byte("b")
	g := newS3Gateway(mock, "bucket", "https://images.example.com", "notes")

	selection := "![a](https://images.example.com/notes/a.png)\n![x](https://other.example.com/x.png)\n![[b.png]]"
	res, err := g.Delete(context.Background(), selection)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if len(res.Sources) != 1 || res.Sources[0] != "![a](https://images.example.com/notes/a.png)" {
		t.Errorf("Sources = %v", res.Sources)
	}
	if _, ok := mock.Objects["notes/a.png"]; ok {
		t.Error("notes/a.png should be deleted")
	}
	if _, ok := mock.Objects["notes/b.png"]; !ok {
		t.Error("notes/b.png should be kept")
	}
}

func TestS3Gateway_DeletePartialFailure(t *testing.T) {
	mock := NewMockS3()
	mock.FailKey = "a.png"
	g := newS3Gateway(mock, "bucket", "https://images.example.com", "")

	_, err := g.Delete(context.Background(), "![a](https://images.example.com/a.png)")

	var delErr *DeleteError
	if !errors.As(err, &delErr) {
		t.Fatalf("expected DeleteError, got %v", err)
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		mimeType string
		name     string
		want     string
	}{
		{"image/png", "x", ".png"},
		{"image/jpeg", "x.jpeg", ".jpg"},
		{"", "photo.HEIC", ".heic"},
		{"", "noext", ".bin"},
	}

	for _, tt := range tests {
		if got := ExtensionFor(tt.mimeType, tt.name); got != tt.want {
			t.Errorf("ExtensionFor(%q, %q) = %q, want %q", tt.mimeType, tt.name, got, tt.want)
		}
	}
}
