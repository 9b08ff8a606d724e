package artifact

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	// StagingDir receives downloaded artifacts.
	StagingDir string
}

// S3Source downloads artifact pairs stored as <Prefix>/<name>.json and
// <Prefix>/<name>.crate from an S3-compatible bucket.
type S3Source struct {
	client     *minio.Client
	bucket     string
	prefix     string
	stagingDir string
}

var _ Source = (*S3Source)(nil)

func NewS3Source(cfg S3Config) (*S3Source, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	staging := strings.TrimSpace(cfg.StagingDir)
	if staging == "" {
		return nil, fmt.Errorf("s3 staging dir is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	opts := &minio.Options{
		Secure: cfg.UseSSL,
		Region: region,
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access != "" || secret != "" {
		opts.Creds = credentials.NewStaticV4(access, secret, "")
	} else {
		opts.Creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Source{
		client:     client,
		bucket:     bucket,
		prefix:     strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		stagingDir: staging,
	}, nil
}

func (s *S3Source) Fetch(ctx context.Context, name string) (Pair, error) {
	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return Pair{}, fmt.Errorf("create staging dir: %w", err)
	}

	pair := Pair{
		Metadata: filepath.Join(s.stagingDir, name+SidecarExt),
		Archive:  filepath.Join(s.stagingDir, name+ArchiveExt),
	}
	for _, ext := range []string{SidecarExt, ArchiveExt} {
		key := s.objectKey(name + ext)
		dest := filepath.Join(s.stagingDir, name+ext)
		if err := s.client.FGetObject(ctx, s.bucket, key, dest, minio.GetObjectOptions{}); err != nil {
			errResp := minio.ToErrorResponse(err)
			if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
				return Pair{}, fmt.Errorf("%w: s3://%s/%s", ErrArtifactNotFound, s.bucket, key)
			}
			return Pair{}, fmt.Errorf("download s3://%s/%s: %w", s.bucket, key, err)
		}
	}
	return pair, nil
}

func (s *S3Source) objectKey(file string) string {
	if s.prefix == "" {
		return file
	}
	return path.Join(s.prefix, file)
}
