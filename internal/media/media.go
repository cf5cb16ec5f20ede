// Package media stores images inserted into drafts and hands back their public URL.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/composer/internal/util"
)

var mediaLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	mediaLogger = l
}

var (
	ErrDisabled        = errors.New("image uploads are disabled")
	ErrUnsupportedType = errors.New("unsupported image type")
)

type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

type Disabled struct{}

func (Disabled) Upload(context.Context, []byte, string) (string, error) {
	return "", ErrDisabled
}

var imageExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// Key returns the content-addressed object key for an image.
func Key(data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	ext, ok := imageExtensions[mediaType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
	}
	return path.Join("images", util.ContentHash(data)+ext), nil
}

type S3Options struct {
	Endpoint        string
	Bucket          string
	PublicURL       string
	AccessKeyID     string
	AccessKeySecret string
	Region          string
}

type S3Uploader struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3Uploader(ctx context.Context, opts S3Options) (*S3Uploader, error) {
	if opts.Bucket == "" {
		return nil, errors.New("media bucket is not configured")
	}
	if opts.Region == "" {
		opts.Region = "auto"
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.AccessKeySecret, "")),
		config.WithRegion(opts.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// R2 and MinIO reject the streaming checksum trailers the SDK adds by default.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := strings.TrimRight(opts.PublicURL, "/")
	if publicURL == "" {
		publicURL = strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
	}

	return &S3Uploader{
		client:    client,
		bucket:    opts.Bucket,
		publicURL: publicURL,
	}, nil
}

// Upload stores data under its content hash. Re-uploading the same image is harmless.
func (u *S3Uploader) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	key, err := Key(data, contentType)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("error uploading %s: %w", key, err)
	}

	mediaLogger.Info().Str("key", key).Int("size", len(data)).Msg("Image uploaded")
	return u.publicURL + "/" + key, nil
}
