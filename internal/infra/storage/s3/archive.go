package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	appoutbox "rentals/internal/app/outbox"
)

// Archive writes every published domain event to an S3-compatible bucket, one
// object per event under events/<name>/<yyyy-mm-dd>/<id>.json.
type Archive struct {
	bucket         string
	client         *minio.Client
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

func NewArchive(endpoint string, useSSL bool, accessKey, secretKey, bucket string, logger *slog.Logger) (*Archive, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	client, err := minio.New(parseEndpoint(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	return &Archive{bucket: bucket, client: client, logger: logger}, nil
}

func (a *Archive) Publish(ctx context.Context, rec appoutbox.EventRecord) error {
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}
	key := ObjectKey(rec)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(rec.Payload), int64(len(rec.Payload)), minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: map[string]string{"event-name": rec.Name, "aggregate-id": rec.Aggregate},
	})
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", key, err)
	}
	if a.logger != nil {
		a.logger.Debug("event archived", "bucket", a.bucket, "key", key)
	}
	return nil
}

func ObjectKey(rec appoutbox.EventRecord) string {
	return fmt.Sprintf("events/%s/%s/%s.json", rec.Name, rec.OccurredAt.UTC().Format("2006-01-02"), rec.ID)
}

func (a *Archive) ensureBucket(ctx context.Context) error {
	a.bucketInitOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			a.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
		}
	})
	return a.bucketInitErr
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ appoutbox.Publisher = (*Archive)(nil)
