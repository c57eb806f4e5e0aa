// Package blob implements the media storage collaborator on AWS S3 (or any
// S3-compatible endpoint such as minio). Failures surface as plain errors for
// the write coordinator to translate into rollback.
package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config for the S3 endpoint.
type Config struct {
	// "http://127.0.0.1:9000"
	HostEndpointUrl string
	// "us-east-1"
	Region   string
	Username string
	Password string
	// Bucket all media lands in.
	Bucket string
}

// Connect to the S3 (or minio) server endpoint.
func Connect(config Config) *s3.Client {
	client := s3.NewFromConfig(aws.Config{Region: config.Region}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(config.HostEndpointUrl)
		o.Credentials = credentials.NewStaticCredentialsProvider(config.Username, config.Password, "")
	})
	return client
}

// Upload result attributes.
type UploadResult struct {
	// Tag is the entity tag the store assigned to the object.
	Tag string
	// URL locates the uploaded object.
	URL string
}

// Store uploads and removes media objects in one bucket.
type Store struct {
	s3Client *s3.Client
	bucket   string
	endpoint string
}

// NewStore wraps an S3 client for the given config's bucket.
func NewStore(s3Client *s3.Client, config Config) (*Store, error) {
	if s3Client == nil {
		return nil, fmt.Errorf("s3Client parameter can't be nil")
	}
	return &Store{
		s3Client: s3Client,
		bucket:   config.Bucket,
		endpoint: strings.TrimSuffix(config.HostEndpointUrl, "/"),
	}, nil
}

// Upload stores file under <ownerID>/<key>.<ext> using the multipart-capable
// uploader and returns the object's tag and URL.
func (s *Store) Upload(ctx context.Context, file io.Reader, key, ownerID, ext string) (UploadResult, error) {
	objectKey := fmt.Sprintf("%s/%s.%s", ownerID, key, ext)
	uploader := manager.NewUploader(s.s3Client)
	out, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   file,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("couldn't upload %s to bucket %s, details: %w", objectKey, s.bucket, err)
	}
	tag := ""
	if out.ETag != nil {
		tag = strings.Trim(*out.ETag, `"`)
	}
	return UploadResult{
		Tag: tag,
		URL: fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, objectKey),
	}, nil
}

// Remove deletes the object the URL points at.
func (s *Store) Remove(ctx context.Context, url string) error {
	prefix := fmt.Sprintf("%s/%s/", s.endpoint, s.bucket)
	objectKey := strings.TrimPrefix(url, prefix)
	if objectKey == url {
		return fmt.Errorf("url %s does not belong to bucket %s", url, s.bucket)
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("couldn't remove %s from bucket %s, details: %w", objectKey, s.bucket, err)
	}
	return nil
}
