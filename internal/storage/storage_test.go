package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"photo.jpg", "image/jpeg"},
		{"photo.JPEG", "image/jpeg"},
		{"a.png", "image/png"},
		{"a.gif", "image/gif"},
		{"a.webp", "image/webp"},
		{"a.bmp", ""},
		{"noext", ""},
		{"evil.png.exe", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContentType(tt.name), tt.name)
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("../../etc/my photo.png")
	assert.True(t, strings.HasSuffix(key, "_my_photo.png"), key)
	assert.False(t, strings.ContainsAny(key, `/\ `))
	assert.Len(t, key, 36+1+len("my_photo.png"))

	assert.NotEqual(t, ObjectKey("a.png"), ObjectKey("a.png"))
}

// =============================================================================
// LocalStore
// =============================================================================

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "uploads"), "/uploads/")
	require.NoError(t, err)
	return s
}

func TestLocalStore_SaveAndDelete(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	key, err := s.Save(ctx, "sunset.jpg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, "_sunset.jpg"))
	assert.Equal(t, "/uploads/"+key, s.URL(key))

	data, err := os.ReadFile(filepath.Join(s.Dir(), key))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(s.Dir(), key))
	assert.True(t, os.IsNotExist(err))

	// second delete is a no-op
	assert.NoError(t, s.Delete(ctx, key))
}

func TestLocalStore_Rejects(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "notes.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	big := bytes.Repeat([]byte{0xff}, MaxImageSize+1)
	_, err = s.Save(ctx, "big.png", bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads must leave nothing behind")

	assert.ErrorIs(t, s.Delete(ctx, "../config.env"), ErrInvalidKey)
	assert.Equal(t, "", s.URL(""))
}

func TestLocalStore_ExactlyMaxSizeIsAccepted(t *testing.T) {
	s := newTestLocalStore(t)
	data := bytes.Repeat([]byte{1}, MaxImageSize)

	_, err := s.Save(context.Background(), "max.webp", bytes.NewReader(data))
	assert.NoError(t, err)
}

// =============================================================================
// S3Store
// =============================================================================

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	body    []byte
	deletes []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(in.Body)
	f.body = buf.Bytes()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{}
	s := newS3Store(fake, "memories", "https://cdn.example.com/")
	ctx := context.Background()

	key, err := s.Save(ctx, "river.png", strings.NewReader("png"))
	require.NoError(t, err)

	require.Len(t, fake.puts, 1)
	put := fake.puts[0]
	assert.Equal(t, "memories", aws.ToString(put.Bucket))
	assert.Equal(t, key, aws.ToString(put.Key))
	assert.Equal(t, "image/png", aws.ToString(put.ContentType))
	assert.Equal(t, int64(3), aws.ToInt64(put.ContentLength))
	assert.Equal(t, "png", string(fake.body))

	assert.Equal(t, "https://cdn.example.com/"+key, s.URL(key))

	require.NoError(t, s.Delete(ctx, key))
	assert.Equal(t, []string{key}, fake.deletes)

	_, err = s.Save(ctx, "clip.mp4", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Len(t, fake.puts, 1)
}
