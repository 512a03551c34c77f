package ft

import (
	"context"
	"time"
)

// Object is one blob plus the metadata stored alongside it.
type Object struct {
	Body          []byte
	ContentType   string
	ContentLength int64
	LastModified  time.Time
}

// ObjectInfo is blob metadata without the body.
type ObjectInfo struct {
	ContentType   string    `json:"contentType"`
	ContentLength int64     `json:"contentLength"`
	LastModified  time.Time `json:"lastModified"`
}

// Bucket provides an interface for blob storage backends. Blobs are
// addressed by opaque keys and reachable from outside only through
// time-limited, operation-scoped signed URLs.
//
// Metadata ordering is fixed across implementations: blob bytes are written
// before the metadata that describes them, so metadata existing implies the
// blob write completed. A crash mid-save leaves at worst an orphan blob,
// never metadata pointing at missing bytes.
type Bucket interface {
	// IssueSignedURL returns a URL authorizing op on key until the
	// configured TTL elapses.
	IssueSignedURL(ctx context.Context, op Operation, key string) (string, error)

	// Save persists the blob and its metadata under key and returns a
	// fresh signed get URL for it.
	Save(ctx context.Context, key string, obj Object) (string, error)

	// FetchByToken validates signedURL against operation get, then reads
	// the blob it names along with its metadata.
	FetchByToken(ctx context.Context, signedURL string) (*Object, error)

	// StoreByToken validates signedURL against operation put, then writes
	// the blob and metadata.
	StoreByToken(ctx context.Context, signedURL string, obj Object) error

	// Head returns blob metadata without fetching the body.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// Delete removes the blob and its metadata.
	Delete(ctx context.Context, key string) error

	// Move copies the blob and metadata to newKey and then deletes the
	// old key. The copy always happens first: a failure in between leaves
	// the object present under both keys, never under neither.
	Move(ctx context.Context, oldKey, newKey string) error
}
