package files

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Settings struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads exports to an S3 bucket or an S3-compatible endpoint.
type S3Store struct {
	client   objectPutter
	settings S3Settings
}

func NewS3Store(ctx context.Context, settings S3Settings) (*S3Store, error) {
	if settings.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(settings.Region)}
	if settings.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			settings.AccessKeyID,
			settings.SecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, settings), nil
}

func newS3Store(client objectPutter, settings S3Settings) *S3Store {
	settings.Prefix = strings.Trim(settings.Prefix, "/")
	settings.PublicURL = strings.TrimRight(settings.PublicURL, "/")
	return &S3Store{client: client, settings: settings}
}

func (s *S3Store) Put(ctx context.Context, key string, content []byte, contentType string) (Object, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return Object{}, err
	}
	if s.settings.Prefix != "" {
		clean = s.settings.Prefix + "/" + clean
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.settings.Bucket),
		Key:         aws.String(clean),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Object{}, fmt.Errorf("upload %s to s3: %w", clean, err)
	}

	return Object{
		Key:  clean,
		Path: "s3://" + s.settings.Bucket + "/" + clean,
		URL:  s.objectURL(clean),
	}, nil
}

func (s *S3Store) objectURL(key string) string {
	switch {
	case s.settings.PublicURL != "":
		return publicLink(s.settings.PublicURL, key)
	case s.settings.Endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.settings.Endpoint, "/"), s.settings.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.settings.Bucket, s.settings.Region, key)
}
