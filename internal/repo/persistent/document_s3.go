package persistent

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cloudcart/invoice-service/pkg/s3client"
)

// DocumentRepo archives rendered invoice documents in object storage.
type DocumentRepo struct {
	*s3client.S3Client
	bucket string
}

func NewDocumentRepo(s3c *s3client.S3Client, bucket string) *DocumentRepo {
	return &DocumentRepo{s3c, bucket}
}

func (r *DocumentRepo) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	b := bytes.NewReader(data)

	_, err := r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          b,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("DocumentRepo - UploadBytes - r.Client.PutObject: %w", err)
	}

	return nil
}

func (r *DocumentRepo) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := r.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("DocumentRepo - Download - r.Client.GetObject: %w", err)
	}

	return result.Body, nil
}

func (r *DocumentRepo) Delete(ctx context.Context, key string) error {
	_, err := r.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("DocumentRepo - Delete - r.Client.DeleteObject: %w", err)
	}

	return nil
}
