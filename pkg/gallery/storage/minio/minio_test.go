package minio

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-gallery/pkg/gallery"
	"github.com/tendant/simple-gallery/pkg/gallery/storage/storagetest"
)

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{Bucket: "photos"})
	assert.Error(t, err)

	_, err = New(ctx, Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}

func TestPublicReadPolicy(t *testing.T) {
	var doc struct {
		Version   string
		Statement []struct {
			Effect   string
			Action   string
			Resource string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(publicReadPolicy("photos")), &doc))
	require.Len(t, doc.Statement, 1)
	assert.Equal(t, "Allow", doc.Statement[0].Effect)
	assert.Equal(t, "s3:GetObject", doc.Statement[0].Action)
	assert.Equal(t, "arn:aws:s3:::photos/*", doc.Statement[0].Resource)
}

// Set GALLERY_TEST_MINIO_ENDPOINT (host:port) plus MINIO_ACCESS_KEY and
// MINIO_SECRET_KEY to run the backend contract against a live server.
func TestMinioBackend_Contract(t *testing.T) {
	endpoint := os.Getenv("GALLERY_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("GALLERY_TEST_MINIO_ENDPOINT not set")
	}

	storagetest.RunBlobStore(t, func(t *testing.T) gallery.BlobStore {
		b, err := New(context.Background(), Config{
			Endpoint:  endpoint,
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    "gallery-test",
			Policy:    gallery.DefaultPolicy(1024),
		})
		require.NoError(t, err)
		assert.Equal(t, "http://"+endpoint+"/gallery-test/a1b2c3d4/x.png", b.PublicURL("a1b2c3d4/x.png"))
		return b
	})
}
