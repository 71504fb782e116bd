package s3

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Backend_Configuration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("InvalidSSE", func(t *testing.T) {
		_, err := New(Config{Bucket: "packages", EnableSSE: true, SSEAlgorithm: "rot13"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid SSE algorithm")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "packages",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		if err != nil {
			assert.NotContains(t, err.Error(), "bucket name is required")
			return
		}
		b, ok := backend.(*Backend)
		require.True(t, ok)
		assert.Equal(t, "us-east-1", b.config.Region)
	})

	t.Run("MinIOEndpoint", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "packages",
			Prefix:          "registry/",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			Endpoint:        "http://localhost:9000",
			UsePathStyle:    true,
		})
		if err != nil {
			return
		}
		b := backend.(*Backend)
		assert.Equal(t, "registry/pypi/demo/1.0/demo.whl", b.objectKey("pypi/demo/1.0/demo.whl"))
	})
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &types.NotFound{})))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("timeout")))
}
