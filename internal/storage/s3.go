package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Storage implements the Storage interface on S3-compatible object storage.
// Objects are keyed category/owner/storedName to mirror the local layout; a
// bucket migrated from the flat scheme keeps plain storedName keys, so lookups
// try the flat key first.
type S3Storage struct {
	client *s3.Client
	bucket string
}

// S3Config holds configuration for S3 storage.
type S3Config struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// NewS3Storage creates a new S3 storage backend.
func NewS3Storage(config S3Config) (*S3Storage, error) {
	// Create custom resolver for endpoint
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if config.Endpoint != "" {
				return aws.Endpoint{
					URL:               config.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			// Return empty endpoint to use default
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	cfg := aws.Config{
		Region: config.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			"",
		),
		EndpointResolverWithOptions: customResolver,
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = config.UsePathStyle
	})

	return &S3Storage{
		client: client,
		bucket: config.Bucket,
	}, nil
}

// Save uploads a file under the organized key scheme.
func (s *S3Storage) Save(category, owner, storedName string, r io.Reader) error {
	ctx := context.Background()

	key := category + "/" + owner + "/" + storedName
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// resolveKey finds the object key for a stored name, flat layout first.
func (s *S3Storage) resolveKey(ctx context.Context, storedName string) (string, error) {
	if s.headObject(ctx, storedName) {
		return storedName, nil
	}

	// Organized layout: owner folders are not known up front, so list the
	// category prefixes and probe each owner.
	for _, category := range []string{CategoryShared, CategoryWebsite} {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:    aws.String(s.bucket),
			Prefix:    aws.String(category + "/"),
			Delimiter: aws.String("/"),
		})
		if err != nil {
			continue
		}
		for _, prefix := range out.CommonPrefixes {
			key := aws.ToString(prefix.Prefix) + storedName
			if s.headObject(ctx, key) {
				return key, nil
			}
		}
	}
	return "", ErrNotFound
}

func (s *S3Storage) headObject(ctx context.Context, key string) bool {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err == nil
}

// Open downloads a file by stored name.
func (s *S3Storage) Open(storedName string) (io.ReadCloser, error) {
	ctx := context.Background()

	key, err := s.resolveKey(ctx, storedName)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	return result.Body, nil
}

// Exists checks if a stored name can be located in the bucket.
func (s *S3Storage) Exists(storedName string) (bool, error) {
	_, err := s.resolveKey(context.Background(), storedName)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a file by stored name; missing objects are not an error.
func (s *S3Storage) Delete(storedName string) error {
	ctx := context.Background()

	key, err := s.resolveKey(ctx, storedName)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}
