package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/local/bookletizer/internal/config"
)

// S3Client stores finished booklets and fetches source documents, optionally
// encrypting them at rest.
type S3Client struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucketName string
	prefix     string
	password   string
}

// NewS3Client creates a new S3 client
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*S3Client, error) {
	awsConf, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(awsConf)

	return &S3Client{
		client: cli,
		uploader: manager.NewUploader(cli, func(u *manager.Uploader) {
			u.PartSize = 16 * 1024 * 1024
		}),
		downloader: manager.NewDownloader(cli),
		bucketName: cfg.Bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		password:   cfg.Password,
	}, nil
}

// Bucket returns the configured bucket name.
func (s *S3Client) Bucket() string { return s.bucketName }

// KeyFor returns the object key of a booklet file produced by a job.
func (s *S3Client) KeyFor(jobID, file string) string {
	return path.Join(s.prefix, jobID, filepath.Base(file))
}

// UploadBooklet uploads one booklet PDF and returns its s3:// location.
func (s *S3Client) UploadBooklet(ctx context.Context, jobID, file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read booklet: %w", err)
	}
	key := s.KeyFor(jobID, file)
	meta := map[string]string{"name": filepath.Base(file), "job-id": jobID}

	body := data
	if s.password != "" {
		body, err = EncryptGCM(data, s.password)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt booklet: %w", err)
		}
		meta["encrypted"] = "true"
		meta["encryption-format"] = gcmMagic
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/pdf"),
		Metadata:    meta,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Info().Str("key", key).Int("size", len(body)).Bool("encrypted", s.password != "").Msg("uploaded booklet to S3")
	return fmt.Sprintf("s3://%s/%s", s.bucketName, key), nil
}

// Download fetches bucket/key into a temp file, decrypting it when it carries
// the encryption header. The caller removes the returned file.
func (s *S3Client) Download(ctx context.Context, bucket, key string) (string, error) {
	f, err := os.CreateTemp("", "s3pdf-*.pdf")
	if err != nil {
		return "", err
	}
	name := f.Name()
	_, err = s.downloader.Download(ctx, f, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	f.Close()
	if err != nil {
		os.Remove(name)
		return "", fmt.Errorf("failed to download from S3: %w", err)
	}

	if err := s.decryptInPlace(name); err != nil {
		os.Remove(name)
		return "", err
	}
	log.Info().Str("bucket", bucket).Str("key", key).Str("file", filepath.Base(name)).Msg("downloaded s3 pdf to temp")
	return name, nil
}

func (s *S3Client) decryptInPlace(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	head := make([]byte, len(gcmMagic))
	_, err = io.ReadFull(f, head)
	f.Close()
	if err != nil || string(head) != gcmMagic {
		return nil
	}
	if s.password == "" {
		return fmt.Errorf("object is encrypted and no password is configured")
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	plain, err := DecryptGCM(data, s.password)
	if err != nil {
		return fmt.Errorf("failed to decrypt data: %w", err)
	}
	return os.WriteFile(name, plain, 0o600)
}

// Ping checks that the bucket is reachable.
func (s *S3Client) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucketName)})
	return err
}
