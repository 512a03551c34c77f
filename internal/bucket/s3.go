package bucket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ft-go/internal/config"
	"ft-go/internal/ft"
)

// S3Bucket is the remote implementation of the ft.Bucket interface, backed
// by an S3 bucket. Signed URLs use S3's native presigning, so expiry and
// operation scoping are enforced by the provider rather than our own token;
// FetchByToken and StoreByToken only run server-side against already
// presigned URLs and resolve the key from the URL path.
type S3Bucket struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	bucket   string
	prefix   string
	ttl      time.Duration
}

// NewS3Bucket creates an S3-backed bucket from configuration.
func NewS3Bucket(ctx context.Context, cfg config.BucketConfig) (*S3Bucket, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	ttl := cfg.SignedURLTTL()
	if ttl <= 0 {
		ttl = ft.DefaultSignedURLTTL
	}

	return &S3Bucket{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
		ttl:      ttl,
	}, nil
}

// IssueSignedURL returns an S3 presigned URL for op on key.
func (b *S3Bucket) IssueSignedURL(ctx context.Context, op ft.Operation, key string) (string, error) {
	switch op {
	case ft.OpGet:
		req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.objectKey(key)),
		}, s3.WithPresignExpires(b.ttl))
		if err != nil {
			return "", fmt.Errorf("%w: presigning get for %s: %w", ft.ErrIOFailure, key, err)
		}
		return req.URL, nil
	case ft.OpPut:
		req, err := b.presign.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.objectKey(key)),
		}, s3.WithPresignExpires(b.ttl))
		if err != nil {
			return "", fmt.Errorf("%w: presigning put for %s: %w", ft.ErrIOFailure, key, err)
		}
		return req.URL, nil
	default:
		return "", fmt.Errorf("unknown operation: %s", op)
	}
}

// Save uploads the blob and returns a fresh presigned get URL. S3 stores
// content type and length alongside the object, so there is no separate
// metadata write.
func (b *S3Bucket) Save(ctx context.Context, key string, obj ft.Object) (string, error) {
	_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.objectKey(key)),
		Body:        bytes.NewReader(obj.Body),
		ContentType: aws.String(obj.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: uploading %s: %w", ft.ErrIOFailure, key, err)
	}
	return b.IssueSignedURL(ctx, ft.OpGet, key)
}

// FetchByToken fetches the object a presigned get URL points at.
func (b *S3Bucket) FetchByToken(ctx context.Context, signedURL string) (*ft.Object, error) {
	key, err := b.keyFromURL(signedURL)
	if err != nil {
		return nil, err
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", ft.ErrIOFailure, key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ft.ErrIOFailure, key, err)
	}
	return &ft.Object{
		Body:          body,
		ContentType:   aws.ToString(out.ContentType),
		ContentLength: aws.ToInt64(out.ContentLength),
		LastModified:  aws.ToTime(out.LastModified),
	}, nil
}

// StoreByToken uploads the object a presigned put URL points at.
func (b *S3Bucket) StoreByToken(ctx context.Context, signedURL string, obj ft.Object) error {
	key, err := b.keyFromURL(signedURL)
	if err != nil {
		return err
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(obj.Body),
		ContentType: aws.String(obj.ContentType),
	})
	if err != nil {
		return fmt.Errorf("%w: storing %s: %w", ft.ErrIOFailure, key, err)
	}
	return nil
}

// Head returns object metadata without the body.
func (b *S3Bucket) Head(ctx context.Context, key string) (*ft.ObjectInfo, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: heading %s: %w", ft.ErrIOFailure, key, err)
	}
	return &ft.ObjectInfo{
		ContentType:   aws.ToString(out.ContentType),
		ContentLength: aws.ToInt64(out.ContentLength),
		LastModified:  aws.ToTime(out.LastModified),
	}, nil
}

// Delete removes the object.
func (b *S3Bucket) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("%w: deleting %s: %w", ft.ErrIOFailure, key, err)
	}
	return nil
}

// Move copies the object to newKey and then deletes the old key. Copy first,
// always: a failure in between duplicates the object rather than losing it.
func (b *S3Bucket) Move(ctx context.Context, oldKey, newKey string) error {
	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		CopySource: aws.String(b.bucket + "/" + b.objectKey(oldKey)),
		Key:        aws.String(b.objectKey(newKey)),
	})
	if err != nil {
		return fmt.Errorf("%w: copying %s to %s: %w", ft.ErrIOFailure, oldKey, newKey, err)
	}
	return b.Delete(ctx, oldKey)
}

// objectKey applies the configured key prefix.
func (b *S3Bucket) objectKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return strings.TrimSuffix(b.prefix, "/") + "/" + key
}

// keyFromURL resolves the object key from a presigned URL's path, handling
// both path-style and virtual-hosted-style URLs.
func (b *S3Bucket) keyFromURL(signedURL string) (string, error) {
	u, err := url.Parse(signedURL)
	if err != nil {
		return "", fmt.Errorf("%w: parsing signed url: %w", ft.ErrTokenInvalid, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	key = strings.TrimPrefix(key, b.bucket+"/")
	if key == "" {
		return "", fmt.Errorf("%w: signed url has no object key", ft.ErrTokenInvalid)
	}
	return key, nil
}

// Compile-time check that S3Bucket implements the ft.Bucket interface
var _ ft.Bucket = (*S3Bucket)(nil)
