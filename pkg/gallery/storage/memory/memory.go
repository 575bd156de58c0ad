package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of the gallery.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	policy  gallery.FilePolicy
}

// New creates a new in-memory storage backend enforcing policy
func New(policy gallery.FilePolicy) *Backend {
	return &Backend{
		objects: make(map[string]object),
		policy:  policy,
	}
}

func (b *Backend) Name() string { return "memory" }

func (b *Backend) Policy() gallery.FilePolicy { return b.policy }

// Put stores content under tenantID/name
func (b *Backend) Put(ctx context.Context, tenantID, name string, reader io.Reader, size int64, contentType string) (string, error) {
	if !gallery.ValidTenantID(tenantID) || !gallery.ValidAssetName(name) {
		return "", fmt.Errorf("%w: invalid key %s/%s", gallery.ErrInvalidArgument, tenantID, name)
	}
	key := gallery.ObjectKey(tenantID, name)
	return key, b.write(key, reader, size, contentType)
}

// PutSingleton overwrites the object at fixedKey
func (b *Backend) PutSingleton(ctx context.Context, fixedKey string, reader io.Reader, size int64, contentType string) (string, error) {
	return fixedKey, b.write(fixedKey, reader, size, contentType)
}

func (b *Backend) write(key string, reader io.Reader, size int64, contentType string) error {
	if err := b.policy.Check(contentType, size); err != nil {
		return err
	}
	data, err := io.ReadAll(b.policy.LimitReader(reader))
	if err != nil {
		return &gallery.StorageError{Backend: b.Name(), Key: key, Op: "put", Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = object{
		data:        data,
		contentType: gallery.NormalizeContentType(contentType),
		updatedAt:   time.Now().UTC(),
	}
	return nil
}

// List returns the tenant's objects sorted by key
func (b *Backend) List(ctx context.Context, tenantID string) ([]gallery.StoredObject, error) {
	prefix := gallery.TenantPrefix(tenantID)

	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []gallery.StoredObject{}
	for key, obj := range b.objects {
		if strings.HasPrefix(key, prefix) {
			result = append(result, gallery.StoredObject{
				Key:         key,
				ContentType: obj.contentType,
				Size:        int64(len(obj.data)),
				UpdatedAt:   obj.updatedAt,
			})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Delete removes one object; missing keys are ignored
func (b *Backend) Delete(ctx context.Context, tenantID, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, gallery.ObjectKey(tenantID, name))
	return nil
}

// DeleteAll removes every object under the tenant prefix
func (b *Backend) DeleteAll(ctx context.Context, tenantID string) error {
	prefix := gallery.TenantPrefix(tenantID)

	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			delete(b.objects, key)
		}
	}
	return nil
}

// Open returns a reader over a copy-free view of the stored bytes
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, *gallery.StoredObject, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, nil, fmt.Errorf("object %s: %w", key, gallery.ErrNotFound)
	}
	meta := &gallery.StoredObject{
		Key:         key,
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
		UpdatedAt:   obj.updatedAt,
	}
	return io.NopCloser(bytes.NewReader(obj.data)), meta, nil
}
