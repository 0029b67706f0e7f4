package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"recipesync/internal/domain/backup"
)

// S3Config хранилище S3 или совместимое (MinIO)
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	// AccessKeyID и SecretAccessKey необязательны, по умолчанию используется
	// стандартная цепочка AWS (переменные окружения, профиль, роль)
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
}

// S3Vault артефакты в бакете. Ссылки на скачивание - подписанные GET-запросы.
type S3Vault struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     S3Config
}

func NewS3Vault(ctx context.Context, cfg S3Config) (*S3Vault, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}
	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return &S3Vault{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
	}, nil
}

func (v *S3Vault) key(key string) *string {
	return aws.String(v.cfg.Prefix + key)
}

func (v *S3Vault) Put(ctx context.Context, key string, data []byte) error {
	_, err := v.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(v.cfg.Bucket),
		Key:           v.key(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("S3 put object: %w", err)
	}
	return nil
}

func (v *S3Vault) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.cfg.Bucket),
		Key:    v.key(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, backup.ErrArtifactAbsent
		}
		return nil, fmt.Errorf("S3 get object: %w", err)
	}
	return resp.Body, nil
}

// Delete удаление в S3 идемпотентно
func (v *S3Vault) Delete(ctx context.Context, key string) error {
	_, err := v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(v.cfg.Bucket),
		Key:    v.key(key),
	})
	if err != nil {
		return fmt.Errorf("S3 delete object: %w", err)
	}
	return nil
}

func (v *S3Vault) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := v.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.cfg.Bucket),
		Key:    v.key(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("S3 presign: %w", err)
	}
	return req.URL, nil
}
