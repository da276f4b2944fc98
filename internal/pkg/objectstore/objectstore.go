// Package objectstore wraps an S3-compatible bucket with the put/head/
// get/copy/delete/list operations the archive pipeline needs: per-link
// artifact storage under {prefix}{link_id}/..., the canonical
// videos/{id}.{ext} blob with a head-before-copy idempotency guard
// (§4.5, §5), and comments.json at {archive_id}comments.json.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Store wraps an s3.Client scoped to one bucket and prefix.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// Options configures New.
type Options struct {
	Endpoint string // empty = default AWS endpoint resolution
	Region   string
	Bucket   string
	Prefix   string
	KeyID    string
	Secret   string
}

// New builds a Store. When Endpoint is set it's treated as an S3-
// compatible third party (R2, MinIO, etc.) using path-style addressing.
func New(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.KeyID, opts.Secret, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

// Key builds the {prefix}{link_id}/{suffix} key convention used
// throughout §6.
func (s *Store) Key(linkID int64, suffix string) string {
	return fmt.Sprintf("%s%d/%s", s.prefix, linkID, suffix)
}

// CommentsKey builds the {archive_id}comments.json key (note: no slash,
// per §6's literal layout).
func (s *Store) CommentsKey(archiveID int64) string {
	return fmt.Sprintf("%d%s", archiveID, "comments.json")
}

// CanonicalVideoKey builds the videos/{id}.{ext} canonical-blob key.
func (s *Store) CanonicalVideoKey(videoID, ext string) string {
	return fmt.Sprintf("videos/%s.%s", videoID, ext)
}

// Put uploads data under key with the given content type.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("objectstore: put %s: %w", key, err)
	}
	return nil
}

// Get downloads the full object at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read body %s: %w", key, err)
	}
	return data, nil
}

// Head reports whether key exists, used as the idempotency guard before
// writing the canonical videos/{id}.{ext} blob (§4.5 step 5, §5).
func (s *Store) Head(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *smithyhttp.ResponseError
	if errors.As(err, &notFound) && notFound.HTTPStatusCode() == 404 {
		return false, nil
	}
	// Some S3-compatible providers respond with a generic NotFound API
	// error rather than a raw 404 response; fall back to a substring
	// check so Head never errors out on a plain miss.
	if isNotFoundErr(err) {
		return false, nil
	}
	return false, fmt.Errorf("objectstore: head %s: %w", key, err)
}

// Copy server-side copies src to dst within the same bucket. Idempotent
// at the call site: callers should Head dst first (§4.5 step 5).
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	copySource := fmt.Sprintf("%s/%s", s.bucket, src)
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(copySource),
	})
	if err != nil {
		return fmt.Errorf("objectstore: copy %s -> %s: %w", src, dst, err)
	}
	return nil
}

// CopyIfAbsent implements the "head before put" idempotency guard exactly
// (§4.5 step 5, §5): copies src to dst only when dst doesn't already
// exist.
func (s *Store) CopyIfAbsent(ctx context.Context, src, dst string) error {
	exists, err := s.Head(ctx, dst)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.Copy(ctx, src, dst)
}

// Delete removes key. No pipeline stage in this repository calls it.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("objectstore: delete %s: %w", key, err)
	}
	return nil
}

// List returns every key under prefix. No pipeline stage in this
// repository calls it; the pipeline only ever addresses keys it
// constructed.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("objectstore: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func isNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "notfound") || strings.Contains(lower, "404")
}
