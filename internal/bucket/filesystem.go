package bucket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"ft-go/internal/ft"
)

// signedQueryParam carries the token on locally signed URLs.
const signedQueryParam = "signed"

// FilesystemBucket is a filesystem-backed implementation of the ft.Bucket
// interface, used in development mode. The blob for key K lives at root/K
// and its metadata at root/K.info as a JSON side file:
//
//	<root>/
//	  <key>        (blob bytes; nested keys create directories on demand)
//	  <key>.info   (ObjectInfo JSON, written only after the blob write)
//
// Signed URLs point at the local HTTP endpoints with the token as a query
// parameter; the token itself enforces operation and expiry.
type FilesystemBucket struct {
	root    string
	baseURL string
	ttl     time.Duration
	tokens  *ft.TokenIssuer
	clock   ft.Clock
}

// NewFilesystemBucket creates a bucket rooted at the given directory.
func NewFilesystemBucket(root, baseURL string, ttl time.Duration, tokens *ft.TokenIssuer, clock ft.Clock) (*FilesystemBucket, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bucket root: %w", err)
	}
	if ttl <= 0 {
		ttl = ft.DefaultSignedURLTTL
	}
	if clock == nil {
		clock = ft.RealClock{}
	}
	return &FilesystemBucket{
		root:    root,
		baseURL: baseURL,
		ttl:     ttl,
		tokens:  tokens,
		clock:   clock,
	}, nil
}

// IssueSignedURL returns a URL for the local blob endpoints embedding a
// token scoped to op and key.
func (b *FilesystemBucket) IssueSignedURL(_ context.Context, op ft.Operation, key string) (string, error) {
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

// Save writes the blob, then its metadata sidecar, and returns a fresh
// signed get URL. The sidecar is written last so its existence implies the
// blob write completed.
func (b *FilesystemBucket) Save(ctx context.Context, key string, obj ft.Object) (string, error) {
	if err := b.write(key, obj); err != nil {
		return "", err
	}
	return b.IssueSignedURL(ctx, ft.OpGet, key)
}

// FetchByToken validates the URL's token against operation get and returns
// the blob with its metadata.
func (b *FilesystemBucket) FetchByToken(_ context.Context, signedURL string) (*ft.Object, error) {
	key, err := b.redeem(signedURL, ft.OpGet)
	if err != nil {
		return nil, err
	}

	info, err := b.readInfo(key)
	if err != nil {
		return nil, err
	}
	body, err := os.ReadFile(b.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: blob %s", ft.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: reading blob %s: %w", ft.ErrIOFailure, key, err)
	}
	return &ft.Object{
		Body:          body,
		ContentType:   info.ContentType,
		ContentLength: info.ContentLength,
		LastModified:  info.LastModified,
	}, nil
}

// StoreByToken validates the URL's token against operation put and writes
// the blob plus metadata.
func (b *FilesystemBucket) StoreByToken(_ context.Context, signedURL string, obj ft.Object) error {
	key, err := b.redeem(signedURL, ft.OpPut)
	if err != nil {
		return err
	}
	return b.write(key, obj)
}

// Head returns the metadata sidecar without reading the blob.
func (b *FilesystemBucket) Head(_ context.Context, key string) (*ft.ObjectInfo, error) {
	return b.readInfo(key)
}

// Delete removes the blob and its metadata sidecar.
func (b *FilesystemBucket) Delete(_ context.Context, key string) error {
	if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: deleting blob %s: %w", ft.ErrIOFailure, key, err)
	}
	if err := os.Remove(b.infoPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: deleting metadata %s: %w", ft.ErrIOFailure, key, err)
	}
	return nil
}

// Move copies blob and metadata to newKey and then deletes the old key.
// Copy always precedes delete: an interruption leaves a duplicate, never a
// lost object.
func (b *FilesystemBucket) Move(ctx context.Context, oldKey, newKey string) error {
	if err := b.copyFile(b.path(oldKey), b.path(newKey)); err != nil {
		return err
	}
	if err := b.copyFile(b.infoPath(oldKey), b.infoPath(newKey)); err != nil {
		return err
	}
	return b.Delete(ctx, oldKey)
}

// redeem extracts the token from a signed URL (or accepts a bare token) and
// validates it against the expected operation.
func (b *FilesystemBucket) redeem(signedURL string, op ft.Operation) (string, error) {
	token := signedURL
	if u, err := url.Parse(signedURL); err == nil {
		if raw := u.Query().Get(signedQueryParam); raw != "" {
			token = raw
		}
	}
	return b.tokens.Redeem(token, op)
}

// write stores blob bytes first, metadata second.
func (b *FilesystemBucket) write(key string, obj ft.Object) error {
	path := b.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: creating blob directory: %w", ft.ErrIOFailure, err)
	}
	if err := os.WriteFile(path, obj.Body, 0644); err != nil {
		return fmt.Errorf("%w: writing blob %s: %w", ft.ErrIOFailure, key, err)
	}

	lastModified := obj.LastModified
	if lastModified.IsZero() {
		lastModified = b.clock.Now()
	}
	info := ft.ObjectInfo{
		ContentType:   obj.ContentType,
		ContentLength: int64(len(obj.Body)),
		LastModified:  lastModified,
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", key, err)
	}
	if err := os.WriteFile(b.infoPath(key), data, 0644); err != nil {
		return fmt.Errorf("%w: writing metadata %s: %w", ft.ErrIOFailure, key, err)
	}
	return nil
}

func (b *FilesystemBucket) readInfo(key string) (*ft.ObjectInfo, error) {
	data, err := os.ReadFile(b.infoPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: object %s", ft.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: reading metadata %s: %w", ft.ErrIOFailure, key, err)
	}
	var info ft.ObjectInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", key, err)
	}
	return &info, nil
}

func (b *FilesystemBucket) copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ft.ErrNotFound, src)
		}
		return fmt.Errorf("%w: reading %s: %w", ft.ErrIOFailure, src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("%w: creating directory: %w", ft.ErrIOFailure, err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ft.ErrIOFailure, dst, err)
	}
	return nil
}

func (b *FilesystemBucket) path(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}

func (b *FilesystemBucket) infoPath(key string) string {
	return b.path(key) + ".info"
}

// Compile-time check that FilesystemBucket implements the ft.Bucket interface
var _ ft.Bucket = (*FilesystemBucket)(nil)
