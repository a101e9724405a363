package storage

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxus-portfolio/apiserver/config"
)

type memoryBackend struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryBackend) EnsureBucket(context.Context) error { return nil }

func (m *memoryBackend) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryBackend) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryBackend) Bucket() string { return "mem" }

func (m *memoryBackend) URL(key string) string { return "mem://" + key }

func TestStorage_URL(t *testing.T) {
	backend := newMemoryBackend()

	assert.Equal(t, "mem://projects/a.png", NewStorage(backend, "").URL("projects/a.png"))
	assert.Equal(t, "https://cdn.example/projects/a.png", NewStorage(backend, "https://cdn.example/").URL("projects/a.png"))
}

func TestStorage_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	s := NewStorage(backend, "")

	require.NoError(t, s.Put(ctx, "k", bytes.NewReader([]byte("img")), 3, "image/png"))
	assert.Equal(t, "image/png", backend.types["k"])

	rc, err := s.Get(ctx, "k")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "img", string(data))

	require.NoError(t, s.Delete(ctx, "k"))
	assert.NotContains(t, backend.objects, "k")

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.Error(t, s.Put(ctx, "", bytes.NewReader(nil), 0, ""))
}

func TestObjectKey(t *testing.T) {
	now := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^projects/2026/02/[0-9a-f-]{36}\.png$`)

	a := ObjectKey("projects", ".PNG", now)
	b := ObjectKey("projects", "png", now)
	assert.Regexp(t, pattern, a)
	assert.Regexp(t, pattern, b)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^projects/2026/02/[0-9a-f-]{36}$`, ObjectKey("projects", "", now))
}

func TestNewFromConfig(t *testing.T) {
	s, err := NewFromConfig(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = NewFromConfig(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)

	_, err = NewFromConfig(context.Background(), config.StorageConfig{Backend: "minio"})
	assert.Error(t, err, "missing minio credentials must fail")
}

func TestS3ObjectURL(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		pathStyle bool
		want      string
	}{
		{"aws virtual host", "", false, "https://imgs.s3.eu-west-1.amazonaws.com/p/a.png"},
		{"aws path style", "", true, "https://s3.eu-west-1.amazonaws.com/imgs/p/a.png"},
		{"custom path style", "http://localhost:9000", true, "http://localhost:9000/imgs/p/a.png"},
		{"custom virtual host", "https://r2.example.com", false, "https://imgs.r2.example.com/p/a.png"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, s3ObjectURL(tc.base, "imgs", "eu-west-1", "p/a.png", tc.pathStyle))
		})
	}
}

func TestCreateBucketInput(t *testing.T) {
	tests := []struct {
		region string
		want   s3types.BucketLocationConstraint
	}{
		{"", ""},
		{"us-east-1", ""},
		{"eu-west-1", s3types.BucketLocationConstraintEuWest1},
		{"ap-southeast-2", "ap-southeast-2"},
	}
	for _, tc := range tests {
		t.Run(tc.region, func(t *testing.T) {
			input := createBucketInput("imgs", tc.region)
			assert.Equal(t, "imgs", aws.ToString(input.Bucket))
			if tc.want == "" {
				assert.Nil(t, input.CreateBucketConfiguration)
				return
			}
			require.NotNil(t, input.CreateBucketConfiguration)
			assert.Equal(t, tc.want, input.CreateBucketConfiguration.LocationConstraint)
		})
	}
}
