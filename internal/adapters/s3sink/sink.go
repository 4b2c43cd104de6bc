// Package s3sink uploads finished reports to S3 or any S3-compatible store.
package s3sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

var ErrInvalidURL = errors.New("invalid s3 url")

// PutObjectAPI is the subset of *s3.Client the sink needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Region       string
	Endpoint     string // empty for AWS
	UsePathStyle bool
}

type Sink struct {
	client PutObjectAPI
	log    *zap.Logger
}

// New builds a sink from the default AWS credential chain.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Sink, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, log), nil
}

func NewWithClient(client PutObjectAPI, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{client: client, log: log.Named("s3sink")}
}

// IsS3URL reports whether dest names an object rather than a local file.
func IsS3URL(dest string) bool {
	return strings.HasPrefix(strings.ToLower(dest), "s3://")
}

// ParseURL splits s3://bucket/key into its parts.
func ParseURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !strings.EqualFold(u.Scheme, "s3") {
		return "", "", fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q needs a bucket and an object key", ErrInvalidURL, raw)
	}
	return bucket, key, nil
}

// Upload stores body at dest (s3://bucket/key).
func (s *Sink) Upload(ctx context.Context, dest, contentType string, body []byte) error {
	bucket, key, err := ParseURL(dest)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	s.log.Info("report uploaded", zap.String("bucket", bucket), zap.String("key", key), zap.Int("bytes", len(body)))
	return nil
}
