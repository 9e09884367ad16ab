package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/gophchat-server/internal/model"
)

// fakeObjects implements objectAPI in memory.
type fakeObjects struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error
	madeBucket      string

	objects     map[string][]byte
	contentType map[string]string

	putErr    error
	getErr    error
	removeErr error
	statErr   error
}

func newFake() *fakeObjects {
	return &fakeObjects{
		bucketExists: true,
		objects:      map[string][]byte{},
		contentType:  map[string]string{},
	}
}

func (f *fakeObjects) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}

func (f *fakeObjects) MakeBucket(_ context.Context, bucket string, _ minioLib.MakeBucketOptions) error {
	f.madeBucket = bucket
	return f.makeBucketErr
}

func (f *fakeObjects) PutObject(_ context.Context, _ string, key string, reader io.Reader, _ int64, opts minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	if f.putErr != nil {
		return minioLib.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minioLib.UploadInfo{}, err
	}
	f.objects[key] = data
	f.contentType[key] = opts.ContentType
	return minioLib.UploadInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, _ string, key string, _ minioLib.GetObjectOptions) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return io.NopCloser(bytes.NewReader(f.objects[key])), nil
}

func (f *fakeObjects) RemoveObject(_ context.Context, _ string, key string, _ minioLib.RemoveObjectOptions) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeObjects) StatObject(_ context.Context, _ string, key string, _ minioLib.StatObjectOptions) (minioLib.ObjectInfo, error) {
	if f.statErr != nil {
		return minioLib.ObjectInfo{}, f.statErr
	}
	if _, ok := f.objects[key]; !ok {
		return minioLib.ObjectInfo{}, minioLib.ErrorResponse{Code: errCodeNoSuchKey}
	}
	return minioLib.ObjectInfo{Key: key, ContentType: f.contentType[key]}, nil
}

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	t.Run("bucket exists", func(t *testing.T) {
		api := newFake()
		c, err := newClient(ctx, api, "avatars")
		require.NoError(t, err)
		assert.Equal(t, "avatars", c.bucket)
		assert.Empty(t, api.madeBucket)
	})

	t.Run("creates bucket", func(t *testing.T) {
		api := newFake()
		api.bucketExists = false
		_, err := newClient(ctx, api, "avatars")
		require.NoError(t, err)
		assert.Equal(t, "avatars", api.madeBucket)
	})

	t.Run("bucket check fails", func(t *testing.T) {
		api := newFake()
		api.bucketExistsErr = errors.New("boom")
		c, err := newClient(ctx, api, "avatars")
		assert.Nil(t, c)
		assert.ErrorContains(t, err, "failed to ensure bucket exists")
	})

	t.Run("bucket creation fails", func(t *testing.T) {
		api := newFake()
		api.bucketExists = false
		api.makeBucketErr = errors.New("denied")
		c, err := newClient(ctx, api, "avatars")
		assert.Nil(t, c)
		assert.ErrorContains(t, err, "failed to create bucket")
	})
}

func TestClient_UploadDownload(t *testing.T) {
	ctx := context.Background()
	api := newFake()
	c := &Client{api: api, bucket: "avatars"}

	payload := []byte("\x89PNG\r\n\x1a\n")
	require.NoError(t, c.Upload(ctx, "users/1", bytes.NewReader(payload), int64(len(payload)), "image/png"))

	rc, contentType, err := c.Download(ctx, "users/1")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, "image/png", contentType)

	ok, err := c.Exists(ctx, "users/1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "users/1"))
	ok, err = c.Exists(ctx, "users/1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_DownloadMissing(t *testing.T) {
	c := &Client{api: newFake(), bucket: "avatars"}

	rc, _, err := c.Download(context.Background(), "absent")
	assert.Nil(t, rc)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()

	api := newFake()
	api.putErr = errors.New("put-fail")
	api.removeErr = errors.New("remove-fail")
	api.statErr = errors.New("stat-fail")
	c := &Client{api: api, bucket: "avatars"}

	err := c.Upload(ctx, "k", bytes.NewReader([]byte("x")), 1, "image/png")
	assert.ErrorContains(t, err, "failed to upload object")

	err = c.Delete(ctx, "k")
	assert.ErrorContains(t, err, "failed to delete object")

	ok, err := c.Exists(ctx, "k")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "failed to stat object")

	_, _, err = c.Download(ctx, "k")
	assert.ErrorContains(t, err, "failed to stat object")

	api.statErr = nil
	api.objects["k"] = []byte("x")
	api.getErr = errors.New("get-fail")
	_, _, err = c.Download(ctx, "k")
	assert.ErrorContains(t, err, "failed to get object")
}
