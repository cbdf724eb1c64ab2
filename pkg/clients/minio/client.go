// Package minio is a traced S3-compatible object client used by the
// object-storage trust store, which keeps one PEM certificate per object.
//
// Operations create OpenTelemetry client spans named "minio.<Op>". Missing
// buckets and objects are reported as CodeNotFound; deadlines as
// CodeTimeoutDependency; other failures as CodeUnavailableDependency.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

const tracerName = "github.com/StricklySoft/stricklysoft-jwt/pkg/clients/minio"

// ObjectStore is the subset of *minio.Client used here.
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

var _ ObjectStore = (*minio.Client)(nil)

// Client wraps an ObjectStore. It is safe for concurrent use.
type Client struct {
	store  ObjectStore
	config Config
	tracer trace.Tracer
}

// NewClient validates cfg, creates a minio-go client, and probes the
// server with BucketExists.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidation, "minio: invalid configuration")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey.Value(), ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration, "minio: failed to create client")
	}
	if _, err := mc.BucketExists(ctx, cfg.HealthBucket); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "minio: failed to connect to server")
	}
	return &Client{store: mc, config: cfg, tracer: otel.Tracer(tracerName)}, nil
}

// NewFromStore wraps an existing store. cfg may be nil.
func NewFromStore(store ObjectStore, cfg *Config) *Client {
	c := &Client{store: store, tracer: otel.Tracer(tracerName)}
	if cfg != nil {
		c.config = *cfg
	}
	if c.config.MaxObjectSize <= 0 {
		c.config.MaxObjectSize = DefaultMaxObjectSize
	}
	if c.config.HealthBucket == "" {
		c.config.HealthBucket = DefaultHealthBucket
	}
	return c
}

// ReadObject returns the full content of bucket/name. Objects larger than
// Config.MaxObjectSize are refused.
func (c *Client) ReadObject(ctx context.Context, bucket, name string) ([]byte, error) {
	ctx, span := c.startSpan(ctx, "ReadObject", bucket, "GET "+name)

	info, err := c.store.StatObject(ctx, bucket, name, minio.StatObjectOptions{})
	if err != nil {
		werr := wrapError(err, fmt.Sprintf("minio: stat %s/%s failed", bucket, name))
		finishSpan(span, werr)
		return nil, werr
	}
	if info.Size > c.config.MaxObjectSize {
		werr := sserr.Newf(sserr.CodeValidation,
			"minio: object %s/%s is %d bytes, limit is %d", bucket, name, info.Size, c.config.MaxObjectSize)
		finishSpan(span, werr)
		return nil, werr
	}

	obj, err := c.store.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
	if err != nil {
		werr := wrapError(err, fmt.Sprintf("minio: get %s/%s failed", bucket, name))
		finishSpan(span, werr)
		return nil, werr
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(io.LimitReader(obj, c.config.MaxObjectSize+1))
	if err != nil {
		werr := wrapError(err, fmt.Sprintf("minio: reading %s/%s failed", bucket, name))
		finishSpan(span, werr)
		return nil, werr
	}
	span.SetAttributes(attribute.Int("minio.object_size", len(data)))
	finishSpan(span, nil)
	return data, nil
}

// WriteObject stores data at bucket/name.
func (c *Client) WriteObject(ctx context.Context, bucket, name, contentType string, data []byte) error {
	ctx, span := c.startSpan(ctx, "WriteObject", bucket, "PUT "+name)
	_, err := c.store.PutObject(ctx, bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		werr := wrapError(err, fmt.Sprintf("minio: put %s/%s failed", bucket, name))
		finishSpan(span, werr)
		return werr
	}
	finishSpan(span, nil)
	return nil
}

// EnsureBucket creates bucket if it does not exist.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	ctx, span := c.startSpan(ctx, "EnsureBucket", bucket, "")
	exists, err := c.store.BucketExists(ctx, bucket)
	if err == nil && !exists {
		err = c.store.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region})
	}
	if err != nil {
		werr := wrapError(err, fmt.Sprintf("minio: ensure bucket %s failed", bucket))
		finishSpan(span, werr)
		return werr
	}
	finishSpan(span, nil)
	return nil
}

// Health probes the server, bounded by DefaultHealthTimeout when ctx has no
// deadline.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "Health", "", "BucketExists "+c.config.HealthBucket)
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}
	_, err := c.store.BucketExists(ctx, c.config.HealthBucket)
	finishSpan(span, err)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency, "minio: health check failed")
	}
	return nil
}

func (c *Client) startSpan(ctx context.Context, op, bucket, statement string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "minio."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "minio"),
		attribute.String("db.name", bucket),
		attribute.String("db.statement", truncateStatement(statement)),
	)
	return ctx, span
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func wrapError(err error, message string) *sserr.Error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return sserr.Wrap(err, sserr.CodeNotFound, message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sserr.Wrap(err, sserr.CodeTimeoutDependency, message)
	}
	return sserr.Wrap(err, sserr.CodeUnavailableDependency, message)
}
