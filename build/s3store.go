package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sarchlab/sdrbench/config"
)

// S3Store keeps artifacts in an S3 bucket so that build machines can share
// them.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates a store on an existing client.
func NewS3Store(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// NewS3StoreFromSettings creates the client from the artifact settings.
// Static keys and a custom endpoint are used when given, which is what
// MinIO and LocalStack need.
func NewS3StoreFromSettings(ctx context.Context, s config.ArtifactSettings) (*S3Store, error) {
	var loaders []func(*awsconfig.LoadOptions) error
	if s.S3Region != "" {
		loaders = append(loaders, awsconfig.WithRegion(s.S3Region))
	}

	if s.AccessKey != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(s.S3Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return NewS3Store(client, s.S3Bucket, s.S3Prefix), nil
}

func (s *S3Store) objectKey(key string) string {
	return path.Join(s.prefix, key+".zst")
}

// Get writes the artifact to w.
func (s *S3Store) Get(ctx context.Context, key string, w io.Writer) (bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if isNotFound(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("fetching artifact %s: %w", key, err)
	}
	defer out.Body.Close()

	if err := decompress(out.Body, w); err != nil {
		return false, fmt.Errorf("reading artifact %s: %w", key, err)
	}

	return true, nil
}

// Put stores the artifact.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader) error {
	data, err := compress(r)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/zstd"),
	})
	if err != nil {
		return fmt.Errorf("storing artifact %s: %w", key, err)
	}

	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
