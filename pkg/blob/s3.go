// Package blob stores page attachments in S3-compatible object storage.
package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ridgeline/intranet/pkg/config"
)

var tracer = otel.Tracer("github.com/ridgeline/intranet/pkg/blob")

// Client handles attachment object operations against one bucket.
type Client struct {
	client *s3.Client
	bucket string
	log    *logrus.Logger
}

// NewClient creates an S3 client from the blob configuration. Static
// credentials are used when provided (MinIO, explicit keys); otherwise the
// default AWS credential chain applies.
func NewClient(cfg config.BlobConfig, log *logrus.Logger) (*Client, error) {
	ctx := context.Background()

	var awsConfig aws.Config
	var err error
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)),
		)
	} else {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	if log == nil {
		log = logrus.New()
	}

	return &Client{
		client: s3Client,
		bucket: cfg.Bucket,
		log:    log,
	}, nil
}

// Put uploads an attachment object.
func (c *Client) Put(ctx context.Context, key string, content io.Reader, contentType string) error {
	ctx, span := tracer.Start(ctx, "Blob.Put",
		trace.WithAttributes(
			attribute.String("s3.bucket", c.bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put failed")
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Get downloads an attachment object. The caller must close the reader.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "Blob.Get",
		trace.WithAttributes(
			attribute.String("s3.bucket", c.bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	return out.Body, nil
}

// DeleteKeys removes a batch of objects. Used for attachment cleanup after
// a page hard delete; failures are logged and returned but the database
// deletion has already happened, so callers typically treat this as
// best-effort.
func (c *Client) DeleteKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "Blob.DeleteKeys",
		trace.WithAttributes(
			attribute.String("s3.bucket", c.bucket),
			attribute.Int("s3.key_count", len(keys)),
		),
	)
	defer span.End()

	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
	}

	out, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(c.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		c.log.WithError(err).WithField("keys", len(keys)).Warn("attachment cleanup failed")
		return fmt.Errorf("failed to delete %d objects: %w", len(keys), err)
	}

	for _, e := range out.Errors {
		c.log.WithFields(logrus.Fields{
			"key":     aws.ToString(e.Key),
			"message": aws.ToString(e.Message),
		}).Warn("attachment object not deleted")
	}
	if len(out.Errors) > 0 {
		return fmt.Errorf("%d of %d objects not deleted", len(out.Errors), len(keys))
	}

	return nil
}
