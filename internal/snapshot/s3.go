package snapshot

import (
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	cfg "github.com/rahidz/oeis-offline-matcher/internal/config"
	matcherrors "github.com/rahidz/oeis-offline-matcher/internal/errors"
)

// S3Source fetches dumps from a private S3 (or S3-compatible) mirror.
type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Source creates an S3 source from the snapshot configuration.
func NewS3Source(ctx context.Context, c cfg.S3Config) (*S3Source, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, matcherrors.NewSnapshotError(matcherrors.CodeSourceMissing, "failed to load AWS config", err)
	}

	var s3Opts []func(*s3.Options)
	if c.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3Source{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: c.Bucket,
		prefix: c.Prefix,
	}, nil
}

// Fetch downloads the object prefix/ref into destPath.
func (s *S3Source) Fetch(ctx context.Context, ref, destPath string) error {
	key := ref
	if s.prefix != "" {
		key = path.Join(s.prefix, ref)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return matcherrors.NewSnapshotError(matcherrors.CodeDownloadFailed,
			fmt.Sprintf("failed to fetch s3://%s/%s", s.bucket, key), err)
	}
	defer out.Body.Close()
	return writeAtomic(destPath, out.Body)
}

// Exists reports whether the mirror holds the given dump.
func (s *S3Source) Exists(ctx context.Context, ref string) (bool, error) {
	key := ref
	if s.prefix != "" {
		key = path.Join(s.prefix, ref)
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}
