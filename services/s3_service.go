package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ExportPublisher stores a generated export and returns a link to read it
type ExportPublisher interface {
	Publish(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// S3Service uploads roster exports to a bucket and hands out presigned
// read URLs for them
type S3Service struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
	Bucket    string
	Expiry    time.Duration
}

// NewS3Service loads the default AWS config for region and returns a
// service writing to bucket
func NewS3Service(ctx context.Context, region, bucket string) (*S3Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Service{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    bucket,
		Expiry:    5 * time.Minute,
	}, nil
}

// Publish uploads body under key and returns a presigned read URL
func (s *S3Service) Publish(ctx context.Context, key, contentType string, body []byte) (string, error) {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        bytes.NewReader(body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	log.Printf("📤 Uploaded export to s3://%s/%s", s.Bucket, key)
	return s.GenerateReadURL(ctx, key)
}

// GenerateReadURL generates a presigned URL for reading a file
func (s *S3Service) GenerateReadURL(ctx context.Context, key string) (string, error) {
	params := &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}
	presignedURL, err := s.Presigner.PresignGetObject(ctx, params, s3.WithPresignExpires(s.Expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return presignedURL.URL, nil
}
