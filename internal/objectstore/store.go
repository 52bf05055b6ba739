// Package objectstore abstracts the blob store holding file contents. The
// integrity subsystem only needs existence, size and bytes of an object.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned by GetObject for a key with no object.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo is the result of a HEAD request. A missing object is reported
// with Exists=false and a nil error.
type ObjectInfo struct {
	Key    string
	Size   int64
	Exists bool
}

// Store is a flat key/value blob store.
type Store interface {
	HeadObject(ctx context.Context, key string) (ObjectInfo, error)

	// GetObject streams the object. The caller must close the reader.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)

	PutObject(ctx context.Context, key string, body io.Reader, size int64) error

	// DeleteObject removes the object. Deleting a missing key is not an error.
	DeleteObject(ctx context.Context, key string) error
}

// Observer receives one call per store operation.
type Observer interface {
	ObserveObjectOperation(operation string, duration time.Duration, err error)
}

type observedStore struct {
	next Store
	obs  Observer
}

// WithObserver wraps s so every call is reported to obs. A nil obs returns s.
func WithObserver(s Store, obs Observer) Store {
	if obs == nil {
		return s
	}
	return &observedStore{next: s, obs: obs}
}

func (o *observedStore) HeadObject(ctx context.Context, key string) (ObjectInfo, error) {
	start := time.Now()
	info, err := o.next.HeadObject(ctx, key)
	o.obs.ObserveObjectOperation("head", time.Since(start), err)
	return info, err
}

func (o *observedStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := o.next.GetObject(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		o.obs.ObserveObjectOperation("get", time.Since(start), nil)
	} else {
		o.obs.ObserveObjectOperation("get", time.Since(start), err)
	}
	return rc, err
}

func (o *observedStore) PutObject(ctx context.Context, key string, body io.Reader, size int64) error {
	start := time.Now()
	err := o.next.PutObject(ctx, key, body, size)
	o.obs.ObserveObjectOperation("put", time.Since(start), err)
	return err
}

func (o *observedStore) DeleteObject(ctx context.Context, key string) error {
	start := time.Now()
	err := o.next.DeleteObject(ctx, key)
	o.obs.ObserveObjectOperation("delete", time.Since(start), err)
	return err
}
