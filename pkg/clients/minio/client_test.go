package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *mockObjectStore) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	obj, _ := args.Get(0).(*minio.Object)
	return obj, args.Error(1)
}

func (m *mockObjectStore) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *mockObjectStore) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *mockObjectStore) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	args := m.Called(ctx, bucketName, opts)
	return args.Error(0)
}

// ===========================================================================
// Config
// ===========================================================================

func TestConfig_Validate_Defaults(t *testing.T) {
	cfg := Config{Endpoint: DefaultEndpoint, AccessKey: "minioadmin"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultRegion, cfg.Region)
	assert.Equal(t, DefaultHealthBucket, cfg.HealthBucket)
	assert.Equal(t, int64(DefaultMaxObjectSize), cfg.MaxObjectSize)
}

func TestConfig_Validate_MissingFields(t *testing.T) {
	cfg := Config{AccessKey: "a"}
	assert.Error(t, cfg.Validate())

	cfg = Config{Endpoint: DefaultEndpoint}
	assert.Error(t, cfg.Validate())
}

func TestSecret_Redacted(t *testing.T) {
	s := Secret("hunter2")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "hunter2", s.Value())
}

func TestTruncateStatement(t *testing.T) {
	long := string(bytes.Repeat([]byte("a"), 150))
	got := truncateStatement(long)
	assert.Len(t, got, maxStatementLen+3)
	assert.Equal(t, "short", truncateStatement("short"))
}

// ===========================================================================
// ReadObject
// ===========================================================================

func TestReadObject_NotFound(t *testing.T) {
	store := new(mockObjectStore)
	store.On("StatObject", mock.Anything, "truststore", "signer.pem", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", Message: "missing"})

	c := NewFromStore(store, nil)
	_, err := c.ReadObject(context.Background(), "truststore", "signer.pem")
	require.Error(t, err)
	assert.True(t, sserr.IsNotFound(err))
	store.AssertExpectations(t)
}

func TestReadObject_MissingBucket(t *testing.T) {
	store := new(mockObjectStore)
	store.On("StatObject", mock.Anything, "nope", "signer.pem", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchBucket"})

	_, err := NewFromStore(store, nil).ReadObject(context.Background(), "nope", "signer.pem")
	assert.True(t, sserr.IsNotFound(err))
}

func TestReadObject_TooLarge(t *testing.T) {
	store := new(mockObjectStore)
	store.On("StatObject", mock.Anything, "truststore", "big.pem", mock.Anything).
		Return(minio.ObjectInfo{Size: 2048}, nil)

	c := NewFromStore(store, &Config{MaxObjectSize: 1024})
	_, err := c.ReadObject(context.Background(), "truststore", "big.pem")
	require.Error(t, err)
	assert.Equal(t, sserr.CodeValidation, sserr.GetCode(err))
	store.AssertNotCalled(t, "GetObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReadObject_GetFails(t *testing.T) {
	store := new(mockObjectStore)
	store.On("StatObject", mock.Anything, "truststore", "signer.pem", mock.Anything).
		Return(minio.ObjectInfo{Size: 10}, nil)
	store.On("GetObject", mock.Anything, "truststore", "signer.pem", mock.Anything).
		Return(nil, errors.New("connection reset"))

	_, err := NewFromStore(store, nil).ReadObject(context.Background(), "truststore", "signer.pem")
	require.Error(t, err)
	assert.True(t, sserr.IsUnavailable(err))
}

func TestReadObject_Timeout(t *testing.T) {
	store := new(mockObjectStore)
	store.On("StatObject", mock.Anything, "truststore", "signer.pem", mock.Anything).
		Return(minio.ObjectInfo{}, context.DeadlineExceeded)

	_, err := NewFromStore(store, nil).ReadObject(context.Background(), "truststore", "signer.pem")
	assert.True(t, sserr.IsTimeout(err))
}

// ===========================================================================
// WriteObject / EnsureBucket
// ===========================================================================

func TestWriteObject(t *testing.T) {
	store := new(mockObjectStore)
	store.On("PutObject", mock.Anything, "truststore", "signer.pem", mock.Anything, int64(5),
		minio.PutObjectOptions{ContentType: "application/x-pem-file"}).
		Return(minio.UploadInfo{}, nil)

	err := NewFromStore(store, nil).WriteObject(context.Background(), "truststore", "signer.pem",
		"application/x-pem-file", []byte("hello"))
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestWriteObject_Error(t *testing.T) {
	store := new(mockObjectStore)
	store.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, errors.New("denied"))

	err := NewFromStore(store, nil).WriteObject(context.Background(), "b", "o", "", nil)
	assert.True(t, sserr.IsUnavailable(err))
}

func TestEnsureBucket_Creates(t *testing.T) {
	store := new(mockObjectStore)
	store.On("BucketExists", mock.Anything, "truststore").Return(false, nil)
	store.On("MakeBucket", mock.Anything, "truststore", mock.Anything).Return(nil)

	require.NoError(t, NewFromStore(store, nil).EnsureBucket(context.Background(), "truststore"))
	store.AssertExpectations(t)
}

func TestEnsureBucket_Exists(t *testing.T) {
	store := new(mockObjectStore)
	store.On("BucketExists", mock.Anything, "truststore").Return(true, nil)

	require.NoError(t, NewFromStore(store, nil).EnsureBucket(context.Background(), "truststore"))
	store.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
}

// ===========================================================================
// Health
// ===========================================================================

func TestHealth(t *testing.T) {
	store := new(mockObjectStore)
	store.On("BucketExists", mock.Anything, DefaultHealthBucket).Return(false, nil).Once()
	store.On("BucketExists", mock.Anything, DefaultHealthBucket).Return(false, errors.New("down")).Once()

	c := NewFromStore(store, nil)
	require.NoError(t, c.Health(context.Background()))

	err := c.Health(context.Background())
	require.Error(t, err)
	assert.True(t, sserr.IsUnavailable(err))
}
