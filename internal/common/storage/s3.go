package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client wraps the S3 API for document storage. Uploaded documents are
// addressed by storage key; readers obtain time-limited pre-signed URLs and
// must re-request a URL rather than cache one past its validity window.
type S3Client struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	ttl       time.Duration
}

func NewS3Client(ctx context.Context, region, bucket string, presignTTL time.Duration) (*S3Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Client{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		ttl:       presignTTL,
	}, nil
}

// PresignedGetURL returns a fresh pre-signed GET URL for a stored document.
func (s *S3Client) PresignedGetURL(ctx context.Context, storageKey string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	}, func(o *s3.PresignOptions) {
		o.Expires = s.ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", storageKey, err)
	}
	return req.URL, nil
}

// Head checks that the object exists before handing its key to a provider.
func (s *S3Client) Head(ctx context.Context, storageKey string) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		return fmt.Errorf("head object %s: %w", storageKey, err)
	}
	return nil
}
