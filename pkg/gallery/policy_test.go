package gallery

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePolicy_Check(t *testing.T) {
	policy := DefaultPolicy(100)

	tests := []struct {
		name        string
		contentType string
		size        int64
		want        error
	}{
		{"jpeg", "image/jpeg", 10, nil},
		{"jpg alias", "image/jpg", 10, nil},
		{"png with params", "image/png; charset=binary", 10, nil},
		{"webp upper case", "IMAGE/WEBP", 100, nil},
		{"unknown size", "image/png", -1, nil},
		{"plain text", "text/plain", 10, ErrUnsupportedType},
		{"gif", "image/gif", 10, ErrUnsupportedType},
		{"empty type", "", 10, ErrUnsupportedType},
		{"too large", "image/png", 101, ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Check(tt.contentType, tt.size)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestDefaultPolicy_FallsBackToDefaultCeiling(t *testing.T) {
	assert.Equal(t, DefaultMaxUploadBytes, DefaultPolicy(0).MaxBytes)
	assert.Equal(t, DefaultMaxUploadBytes, DefaultPolicy(-5).MaxBytes)
	assert.Equal(t, int64(42), DefaultPolicy(42).MaxBytes)
}

func TestFilePolicy_LimitReader(t *testing.T) {
	policy := DefaultPolicy(8)

	data, err := io.ReadAll(policy.LimitReader(bytes.NewReader([]byte("12345678"))))
	require.NoError(t, err)
	assert.Equal(t, "12345678", string(data))

	_, err = io.ReadAll(policy.LimitReader(bytes.NewReader([]byte("123456789"))))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	unlimited := FilePolicy{}
	data, err = io.ReadAll(unlimited.LimitReader(strings.NewReader(strings.Repeat("x", 1000))))
	require.NoError(t, err)
	assert.Len(t, data, 1000)
}

func TestSniffContentType(t *testing.T) {
	assert.Equal(t, ContentTypePNG, SniffContentType([]byte("\x89PNG\r\n\x1a\n0000")))
	assert.Equal(t, ContentTypeJPEG, SniffContentType([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}))
	assert.Equal(t, ContentTypeWebP, SniffContentType([]byte("RIFF\x00\x00\x00\x00WEBPVP")))
	assert.Equal(t, "text/plain", SniffContentType([]byte("hello")))
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, ".jpg", ExtensionFor("image/jpeg"))
	assert.Equal(t, ".png", ExtensionFor("image/x-png"))
	assert.Equal(t, ".webp", ExtensionFor(ContentTypeWebP))
	assert.Equal(t, "", ExtensionFor("text/plain"))

	assert.Equal(t, ContentTypeJPEG, ContentTypeForName("a/b.JPEG"))
	assert.Equal(t, ContentTypeWebP, ContentTypeForName("photo.webp"))
	assert.Equal(t, "", ContentTypeForName("logo"))
}
