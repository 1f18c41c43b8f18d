package accounts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// S3ImageStoreConfig carries the credentials and bucket for the S3 backed
// image store. No field falls back to process globals.
type S3ImageStoreConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	KeyPrefix       string
}

// S3ImageStore stores profile pictures in an S3 bucket and hands back
// opaque references.
type S3ImageStore struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3ImageStore builds the store and verifies the bucket exists.
func NewS3ImageStore(ctx context.Context, cfg S3ImageStoreConfig) (*S3ImageStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.Region = cfg.Region
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
			return nil, fmt.Errorf("bucket '%s' does not exist", cfg.Bucket)
		}
		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &S3ImageStore{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.KeyPrefix,
	}, nil
}

func (s *S3ImageStore) Store(ctx context.Context, filename string, data []byte) (*ImageRef, error) {
	if len(data) == 0 {
		return nil, goerrors.New("image payload is empty", goerrors.CategoryBadInput)
	}

	key := path.Join(s.prefix, uuid.NewString()+path.Ext(filename))

	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "s3 upload failed")
	}

	ref := &ImageRef{
		URL:      out.Location,
		PublicID: key,
		AssetID:  out.UploadID,
	}
	if out.ETag != nil {
		ref.Signature = *out.ETag
	}

	return ref, nil
}

var _ ImageStore = (*S3ImageStore)(nil)
