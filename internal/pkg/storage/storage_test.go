package storage

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpError(t *testing.T) {
	t.Parallel()

	require.NoError(t, opError(backendS3, "put", nil))

	err := opError(backendGCS, "object attrs a.eml", ErrObjectNotFound)
	require.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, "storage: gcs object attrs a.eml: storage: object not found", err.Error())
}

func TestPutOptions_Uploaded(t *testing.T) {
	t.Parallel()

	opts := PutOptions{Size: 42, ContentType: "message/rfc822", Metadata: map[string]string{"from": "a@example.com"}}

	info := opts.uploaded("mail", "2026/10/15/1.eml", `"etag"`)

	assert.Equal(t, ObjectInfo{
		Bucket:      "mail",
		Key:         "2026/10/15/1.eml",
		Size:        42,
		ETag:        `"etag"`,
		ContentType: "message/rfc822",
		Metadata:    map[string]string{"from": "a@example.com"},
	}, info)
}

func TestNotFoundMapping(t *testing.T) {
	t.Parallel()

	t.Run("s3", func(t *testing.T) {
		t.Parallel()

		assert.True(t, isS3NotFound(&types.NoSuchKey{}))
		assert.True(t, isS3NotFound(&types.NotFound{}))
		assert.False(t, isS3NotFound(errors.New("access denied")))
		assert.False(t, isS3NotFound(nil))
	})

	t.Run("minio", func(t *testing.T) {
		t.Parallel()

		assert.True(t, isMinIONotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
		assert.True(t, isMinIONotFound(minio.ErrorResponse{StatusCode: http.StatusNotFound}))
		assert.False(t, isMinIONotFound(minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}))
		assert.False(t, isMinIONotFound(nil))
	})
}
