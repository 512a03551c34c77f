package bucket

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"ft-go/internal/ft"
)

// MemoryBucket is an in-memory implementation of the ft.Bucket interface.
// It behaves like FilesystemBucket (homegrown tokens, metadata recorded at
// save time) without touching disk, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryBucket struct {
	baseURL string
	ttl     time.Duration
	tokens  *ft.TokenIssuer
	clock   ft.Clock

	mu      sync.RWMutex
	objects map[string]ft.Object
}

// NewMemoryBucket creates a new in-memory bucket.
func NewMemoryBucket(baseURL string, ttl time.Duration, tokens *ft.TokenIssuer, clock ft.Clock) *MemoryBucket {
	if ttl <= 0 {
		ttl = ft.DefaultSignedURLTTL
	}
	if clock == nil {
		clock = ft.RealClock{}
	}
	return &MemoryBucket{
		baseURL: baseURL,
		ttl:     ttl,
		tokens:  tokens,
		clock:   clock,
		objects: make(map[string]ft.Object),
	}
}

func (b *MemoryBucket) IssueSignedURL(_ context.Context, op ft.Operation, key string) (string, error) {
	token, err := b.tokens.Issue(op, key, b.ttl)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}

	u, err := url.Parse(b.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	u.Path = "/file"
	q := u.Query()
	q.Set(signedQueryParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (b *MemoryBucket) Save(ctx context.Context, key string, obj ft.Object) (string, error) {
	b.put(key, obj)
	return b.IssueSignedURL(ctx, ft.OpGet, key)
}

func (b *MemoryBucket) FetchByToken(_ context.Context, signedURL string) (*ft.Object, error) {
	key, err := b.redeem(signedURL, ft.OpGet)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", ft.ErrNotFound, key)
	}
	copied := obj
	copied.Body = append([]byte{}, obj.Body...)
	return &copied, nil
}

func (b *MemoryBucket) StoreByToken(_ context.Context, signedURL string, obj ft.Object) error {
	key, err := b.redeem(signedURL, ft.OpPut)
	if err != nil {
		return err
	}
	b.put(key, obj)
	return nil
}

func (b *MemoryBucket) Head(_ context.Context, key string) (*ft.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", ft.ErrNotFound, key)
	}
	return &ft.ObjectInfo{
		ContentType:   obj.ContentType,
		ContentLength: obj.ContentLength,
		LastModified:  obj.LastModified,
	}, nil
}

func (b *MemoryBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *MemoryBucket) Move(_ context.Context, oldKey, newKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[oldKey]
	if !ok {
		return fmt.Errorf("%w: blob %s", ft.ErrNotFound, oldKey)
	}
	// Copy before delete, same as the other backends.
	b.objects[newKey] = obj
	delete(b.objects, oldKey)
	return nil
}

func (b *MemoryBucket) redeem(signedURL string, op ft.Operation) (string, error) {
	token := signedURL
	if u, err := url.Parse(signedURL); err == nil {
		if raw := u.Query().Get(signedQueryParam); raw != "" {
			token = raw
		}
	}
	return b.tokens.Redeem(token, op)
}

func (b *MemoryBucket) put(key string, obj ft.Object) {
	stored := obj
	stored.Body = append([]byte{}, obj.Body...)
	stored.ContentLength = int64(len(obj.Body))
	if stored.LastModified.IsZero() {
		stored.LastModified = b.clock.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = stored
}

// Compile-time check that MemoryBucket implements the ft.Bucket interface
var _ ft.Bucket = (*MemoryBucket)(nil)
