package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

// DefaultURLPrefix is the read endpoint the HTTP layer mounts for fs backends.
const DefaultURLPrefix = "/files"

// Backend is a filesystem implementation of the gallery.BlobStore interface.
// Objects live at baseDir/tenantID/name.
type Backend struct {
	name      string
	ephemeral bool
	baseDir   string
	urlPrefix string
	policy    gallery.FilePolicy
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	URLPrefix string // URL prefix of the read endpoint (default: /files)
	Policy    gallery.FilePolicy
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	return newBackend("fs", config)
}

// NewEphemeral creates a filesystem backend in a fresh directory under
// config.BaseDir, or under the OS temp directory when BaseDir is empty.
// Close removes only that fresh directory; the root is left untouched.
func NewEphemeral(config Config) (*Backend, error) {
	root := config.BaseDir
	if root == "" {
		root = os.TempDir()
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if filepath.Dir(root) == root {
		return nil, fmt.Errorf("%w: ephemeral storage cannot be rooted at %s", gallery.ErrInvalidArgument, root)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	dir, err := os.MkdirTemp(root, "simple-gallery-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create ephemeral directory: %w", err)
	}

	config.BaseDir = dir
	b, err := newBackend("tmp", config)
	if err != nil {
		_ = os.Remove(dir)
		return nil, err
	}
	b.ephemeral = true
	return b, nil
}

func newBackend(name string, config Config) (*Backend, error) {
	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	if config.URLPrefix == "" {
		config.URLPrefix = DefaultURLPrefix
	}
	return &Backend{
		name:      name,
		baseDir:   baseDir,
		urlPrefix: strings.TrimRight(config.URLPrefix, "/"),
		policy:    config.Policy,
	}, nil
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) Policy() gallery.FilePolicy { return b.policy }

// Close removes the directory an ephemeral backend created for itself. It is
// a no-op for durable backends.
func (b *Backend) Close() error {
	if !b.ephemeral {
		return nil
	}
	return os.RemoveAll(b.baseDir)
}

// BaseDir returns the absolute root directory
func (b *Backend) BaseDir() string { return b.baseDir }

// PublicURL returns the read endpoint path for key
func (b *Backend) PublicURL(key string) string {
	return b.urlPrefix + "/" + key
}

// path joins key under baseDir and refuses anything that escapes it.
func (b *Backend) path(key string) (string, error) {
	p := filepath.Join(b.baseDir, filepath.FromSlash(key))
	if p != b.baseDir && !strings.HasPrefix(p, b.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: key %q escapes base directory", gallery.ErrInvalidArgument, key)
	}
	return p, nil
}

// Put writes content to baseDir/tenantID/name
func (b *Backend) Put(ctx context.Context, tenantID, name string, reader io.Reader, size int64, contentType string) (string, error) {
	if !gallery.ValidTenantID(tenantID) || !gallery.ValidAssetName(name) {
		return "", fmt.Errorf("%w: invalid key %s/%s", gallery.ErrInvalidArgument, tenantID, name)
	}
	key := gallery.ObjectKey(tenantID, name)
	return key, b.write(ctx, key, reader, size, contentType)
}

// PutSingleton overwrites the file at fixedKey
func (b *Backend) PutSingleton(ctx context.Context, fixedKey string, reader io.Reader, size int64, contentType string) (string, error) {
	return fixedKey, b.write(ctx, fixedKey, reader, size, contentType)
}

// write streams into a temp file beside the target and renames it into
// place, so readers never observe a partial object.
func (b *Backend) write(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if err := b.policy.Check(contentType, size); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := b.path(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &gallery.StorageError{Backend: b.name, Key: key, Op: "put", Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return &gallery.StorageError{Backend: b.name, Key: key, Op: "put", Err: fmt.Errorf("failed to create file: %w", err)}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, b.policy.LimitReader(reader)); err != nil {
		tmp.Close()
		return &gallery.StorageError{Backend: b.name, Key: key, Op: "put", Err: fmt.Errorf("failed to write file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &gallery.StorageError{Backend: b.name, Key: key, Op: "put", Err: err}
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		return &gallery.StorageError{Backend: b.name, Key: key, Op: "put", Err: err}
	}
	return nil
}

// List returns the tenant's files sorted by name. Temp files are skipped.
func (b *Backend) List(ctx context.Context, tenantID string) ([]gallery.StoredObject, error) {
	dir, err := b.path(tenantID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []gallery.StoredObject{}, nil
	}
	if err != nil {
		return nil, &gallery.StorageError{Backend: b.name, Key: tenantID, Op: "list", Err: err}
	}

	result := make([]gallery.StoredObject, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			// removed concurrently
			continue
		}
		if err != nil {
			return nil, &gallery.StorageError{Backend: b.name, Key: tenantID, Op: "list", Err: err}
		}
		key := gallery.ObjectKey(tenantID, entry.Name())
		result = append(result, gallery.StoredObject{
			Key:         key,
			ContentType: gallery.ContentTypeForName(entry.Name()),
			Size:        info.Size(),
			UpdatedAt:   info.ModTime().UTC(),
		})
	}
	return result, nil
}

// Delete removes one file; a missing file is not an error
func (b *Backend) Delete(ctx context.Context, tenantID, name string) error {
	filePath, err := b.path(gallery.ObjectKey(tenantID, name))
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &gallery.StorageError{Backend: b.name, Key: gallery.ObjectKey(tenantID, name), Op: "delete", Err: err}
	}
	return nil
}

// DeleteAll removes the tenant directory
func (b *Backend) DeleteAll(ctx context.Context, tenantID string) error {
	if !gallery.ValidTenantID(tenantID) {
		return fmt.Errorf("%w: invalid tenant id %q", gallery.ErrInvalidArgument, tenantID)
	}
	dir, err := b.path(tenantID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return &gallery.StorageError{Backend: b.name, Key: tenantID, Op: "delete_all", Err: err}
	}
	return nil
}

// Open opens the file at key. The content type comes from the extension,
// or is sniffed for extension-less keys such as the branding logo.
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, *gallery.StoredObject, error) {
	filePath, err := b.path(key)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("object %s: %w", key, gallery.ErrNotFound)
	} else if err != nil {
		return nil, nil, &gallery.StorageError{Backend: b.name, Key: key, Op: "open", Err: err}
	}

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		file.Close()
		return nil, nil, fmt.Errorf("object %s: %w", key, gallery.ErrNotFound)
	}

	contentType := gallery.ContentTypeForName(key)
	if contentType == "" {
		buffer := make([]byte, 512)
		n, _ := io.ReadFull(file, buffer)
		contentType = gallery.SniffContentType(buffer[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, nil, &gallery.StorageError{Backend: b.name, Key: key, Op: "open", Err: err}
		}
	}

	meta := &gallery.StoredObject{
		Key:         key,
		ContentType: contentType,
		Size:        info.Size(),
		UpdatedAt:   info.ModTime().UTC(),
	}
	return file, meta, nil
}
