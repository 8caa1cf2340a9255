package storage

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/notetasks/internal/common"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUploadKey(t *testing.T) {
	id := uuid.MustParse("6f1c2b8e-8a61-4a33-9a5e-3a3f4b1c2d7e")
	now := time.Date(2025, 3, 7, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "uploads/2025/03/07/6f1c2b8e-8a61-4a33-9a5e-3a3f4b1c2d7e.jpg", UploadKey(now, id, ".JPG"))
	assert.Equal(t, "uploads/2025/03/07/6f1c2b8e-8a61-4a33-9a5e-3a3f4b1c2d7e.png", UploadKey(now, id, "png"))
	assert.Equal(t, "uploads/2025/03/07/6f1c2b8e-8a61-4a33-9a5e-3a3f4b1c2d7e", UploadKey(now, id, ""))
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "uploads/a.png", want: "uploads/a.png"},
		{key: "uploads/./b/../a.png", want: "uploads/a.png"},
		{key: `uploads\win.png`, want: "uploads/win.png"},
		{key: "", wantErr: true},
		{key: "/etc/passwd", wantErr: true},
		{key: "../secret", wantErr: true},
		{key: "uploads/../../x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cleanKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFSStore(dir, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "fs", s.Type())

	key := "uploads/2025/06/15/note.png"
	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Write(ctx, key, []byte("png-bytes"), "image/png"))
	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	onDisk, err := os.ReadFile(filepath.Join(dir, "uploads", "2025", "06", "15", "note.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), onDisk)

	entries, err := os.ReadDir(filepath.Join(dir, "uploads", "2025", "06", "15"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Read(ctx, key)
	assert.ErrorIs(t, err, common.ErrImageNotFound)

	assert.ErrorIs(t, s.Write(ctx, "../escape.png", nil, ""), common.ErrInvalidInput)
}

// fakeS3 is a path-style S3 endpoint good enough for the calls MinioStore makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucket, key := parts[0], ""
	if len(parts) == 2 {
		key, _ = url.PathUnescape(parts[1])
	}

	if key == "" {
		switch r.Method {
		case http.MethodHead:
			if !f.buckets[bucket] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		case http.MethodPut:
			f.buckets[bucket] = true
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	id := bucket + "/" + key
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		if strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") ||
			strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeAWSChunked(body)
		}
		f.objects[id] = body
		f.types[id] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := f.objects[id]
		if !ok {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message>`+
				`<Key>`+key+`</Key><BucketName>`+bucket+`</BucketName></Error>`)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Content-Type", f.types[id])
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Last-Modified", time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	case http.MethodDelete:
		delete(f.objects, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// decodeAWSChunked strips the aws-chunked framing: "<hex>[;ext]\r\n<data>\r\n" ... "0...".
func decodeAWSChunked(body []byte) []byte {
	var out bytes.Buffer
	r := bufio.NewReader(bytes.NewReader(body))
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return out.Bytes()
		}
		sizeHex := strings.TrimSpace(strings.SplitN(line, ";", 2)[0])
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil || size == 0 {
			return out.Bytes()
		}
		if _, err := io.CopyN(&out, r, size); err != nil {
			return out.Bytes()
		}
		_, _ = r.ReadString('\n')
	}
}

func newTestMinio(t *testing.T, opts ...MinioOpts) (*MinioStore, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	opts = append([]MinioOpts{
		WithEndpoint(u.Host),
		WithBucket("notes"),
		WithAccessKey("minioadmin"),
		WithSecretKey("minioadmin"),
	}, opts...)
	s, err := NewMinioStore(discardLogger(), opts...)
	require.NoError(t, err)
	return s, fake
}

func TestMinioStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestMinio(t, WithPrefix("media"))
	assert.Equal(t, "minio", s.Type())

	require.NoError(t, s.EnsureBucket(ctx))
	assert.True(t, fake.buckets["notes"])
	require.NoError(t, s.EnsureBucket(ctx))

	key := "uploads/2025/06/15/a.png"
	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Write(ctx, key, []byte("hello image"), "image/png"))
	assert.Equal(t, []byte("hello image"), fake.objects["notes/media/"+key])
	assert.Equal(t, "image/png", fake.types["notes/media/"+key])

	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello image"), data)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Read(ctx, key)
	assert.ErrorIs(t, err, common.ErrImageNotFound)
}

func TestNewMinioStore_RequiresEndpointAndBucket(t *testing.T) {
	_, err := NewMinioStore(discardLogger(), WithBucket("notes"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = NewMinioStore(discardLogger(), WithEndpoint("localhost:9000"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
