package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// FolderRecordings is the S3 prefix for recording objects.
const FolderRecordings = "recordings"

// S3Config holds S3 client configuration.
type S3Config struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	RecordingsBucket string
}

// S3 stores media files under recordings/ in the recordings bucket.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or .env (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("recordings_bucket", cfg.RecordingsBucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024 // 5MB parts for streaming
	})
	return &S3{
		client:   client,
		uploader: uploader,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// RecordingKey returns the S3 object key for a media file: recordings/{name}.
func RecordingKey(name string) string {
	return path.Join(FolderRecordings, name)
}

// Put streams body to S3 (multipart for large files).
func (s *S3) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	var contentLength *int64
	if size > 0 {
		contentLength = &size
	}
	if contentType == "" {
		contentType = ContentTypeForKey(key)
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.RecordingsBucket),
		Key:           aws.String(RecordingKey(key)),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: contentLength,
	})
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return nil
}

// Open returns the object body for streaming. Caller must close the body.
func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, Object{}, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.RecordingsBucket),
		Key:    aws.String(RecordingKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, Object{}, ErrNotFound
		}
		return nil, Object{}, fmt.Errorf("get object: %w", err)
	}
	return out.Body, objectFromGet(key, out), nil
}

func objectFromGet(key string, out *s3.GetObjectOutput) Object {
	obj := Object{Key: key, Size: aws.ToInt64(out.ContentLength), ContentType: aws.ToString(out.ContentType)}
	if out.LastModified != nil {
		obj.ModTime = *out.LastModified
	}
	if obj.ContentType == "" {
		obj.ContentType = ContentTypeForKey(key)
	}
	return obj
}

// OpenRange returns byteRange of the object, e.g. "bytes=0-1023". Caller must close the body.
func (s *S3) OpenRange(ctx context.Context, key, byteRange string) (io.ReadCloser, Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, Object{}, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.RecordingsBucket),
		Key:    aws.String(RecordingKey(key)),
		Range:  aws.String(byteRange),
	})
	if err != nil {
		switch {
		case isNotFound(err):
			return nil, Object{}, ErrNotFound
		case hasErrorCode(err, "InvalidRange"):
			return nil, Object{}, ErrInvalidRange
		}
		return nil, Object{}, fmt.Errorf("get object range: %w", err)
	}
	obj := objectFromGet(key, out)
	obj.ContentRange = aws.ToString(out.ContentRange)
	return out.Body, obj, nil
}

// Remove deletes an object. S3 treats deleting a missing key as success.
func (s *S3) Remove(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.RecordingsBucket),
		Key:    aws.String(RecordingKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// List returns every object under the recordings prefix.
func (s *S3) List(ctx context.Context) ([]Object, error) {
	prefix := FolderRecordings + "/"
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.RecordingsBucket),
		Prefix: aws.String(prefix),
	})
	var out []Object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, o := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(o.Key), prefix)
			if ValidateKey(name) != nil {
				continue
			}
			obj := Object{Key: name, Size: aws.ToInt64(o.Size), ContentType: ContentTypeForKey(name)}
			if o.LastModified != nil {
				obj.ModTime = *o.LastModified
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

func isNotFound(err error) bool {
	return hasErrorCode(err, "NoSuchKey", "NotFound")
}

func hasErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.ErrorCode() == c {
			return true
		}
	}
	return false
}
