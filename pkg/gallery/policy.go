package gallery

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"slices"
	"strings"
)

// Allowed image content types
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeWebP = "image/webp"
)

// DefaultMaxUploadBytes is used when a backend is configured without a limit.
const DefaultMaxUploadBytes int64 = 10 << 20

// DefaultAllowedTypes is the image allow-list.
var DefaultAllowedTypes = []string{ContentTypeJPEG, ContentTypePNG, ContentTypeWebP}

// FilePolicy holds the per-file upload limits of a backend.
type FilePolicy struct {
	MaxBytes     int64
	AllowedTypes []string
}

// DefaultPolicy returns the image allow-list with the given byte ceiling.
// A non-positive maxBytes selects DefaultMaxUploadBytes.
func DefaultPolicy(maxBytes int64) FilePolicy {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return FilePolicy{MaxBytes: maxBytes, AllowedTypes: slices.Clone(DefaultAllowedTypes)}
}

// Check validates a declared content type and size. A negative size means
// unknown and is enforced while reading instead (see LimitReader).
func (p FilePolicy) Check(contentType string, size int64) error {
	ct := NormalizeContentType(contentType)
	allowed := p.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	if !slices.Contains(allowed, ct) {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, size, p.MaxBytes)
	}
	return nil
}

// LimitReader wraps r so that reading past the policy ceiling fails with
// ErrFileTooLarge instead of silently truncating.
func (p FilePolicy) LimitReader(r io.Reader) io.Reader {
	if p.MaxBytes <= 0 {
		return r
	}
	return &limitedReader{r: r, remaining: p.MaxBytes, limit: p.MaxBytes}
}

type limitedReader struct {
	r         io.Reader
	remaining int64
	limit     int64
}

func (l *limitedReader) Read(b []byte) (int, error) {
	if l.remaining < 0 {
		return 0, fmt.Errorf("%w: exceeds limit of %d bytes", ErrFileTooLarge, l.limit)
	}
	// read one byte past the limit to detect oversize input
	if int64(len(b)) > l.remaining+1 {
		b = b[:l.remaining+1]
	}
	n, err := l.r.Read(b)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, fmt.Errorf("%w: exceeds limit of %d bytes", ErrFileTooLarge, l.limit)
	}
	return n, err
}

// NormalizeContentType strips parameters, lower-cases and maps common
// aliases onto the canonical allow-list names.
func NormalizeContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	switch ct {
	case "image/jpg", "image/pjpeg":
		return ContentTypeJPEG
	case "image/x-png":
		return ContentTypePNG
	}
	return ct
}

// SniffContentType detects the content type from the leading bytes.
func SniffContentType(head []byte) string {
	return NormalizeContentType(http.DetectContentType(head))
}

// ExtensionFor returns the file extension used for keys of contentType.
func ExtensionFor(contentType string) string {
	switch NormalizeContentType(contentType) {
	case ContentTypeJPEG:
		return ".jpg"
	case ContentTypePNG:
		return ".png"
	case ContentTypeWebP:
		return ".webp"
	default:
		return ""
	}
}

// ContentTypeForName infers an allowed content type from a key's extension.
func ContentTypeForName(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	switch strings.ToLower(name[i:]) {
	case ".jpg", ".jpeg":
		return ContentTypeJPEG
	case ".png":
		return ContentTypePNG
	case ".webp":
		return ContentTypeWebP
	default:
		return ""
	}
}
