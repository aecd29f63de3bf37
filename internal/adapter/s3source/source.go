// Package s3source 从 S3 兼容存储（R2 等）读取快照
package s3source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"LundaSync/internal/config"
	"LundaSync/internal/interfaces"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

const Scheme = "s3"

type Source struct {
	client *s3.Client
	bucket string
	key    string
	logger *logrus.Logger
}

// ParseLocation s3://bucket/path/to/key
func ParseLocation(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, Scheme+"://")
	if !ok {
		return "", "", fmt.Errorf("不是 s3 地址: %s", location)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 地址缺少 bucket 或 key: %s", location)
	}
	return bucket, key, nil
}

func New(location string, cfg *config.Config, logger *logrus.Logger) (interfaces.SnapshotSource, error) {
	bucket, key, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	var s3cfg config.SnapshotS3Config
	if cfg != nil {
		s3cfg = cfg.SnapshotS3
	}
	region := s3cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if s3cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3cfg.AccessKeyID, s3cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("加载S3配置失败: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Source{client: client, bucket: bucket, key: key, logger: logger}, nil
}

func (s *Source) Scheme() string   { return Scheme }
func (s *Source) Location() string { return Scheme + "://" + s.bucket + "/" + s.key }

// Fetch 读取对象，mtime 取对象的 LastModified
func (s *Source) Fetch(ctx context.Context) (*interfaces.Snapshot, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("读取S3快照失败: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("读取S3快照内容失败: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"bucket": s.bucket, "key": s.key, "bytes": len(data)}).Debug("已读取S3快照")
	return &interfaces.Snapshot{Location: s.Location(), ModTime: out.LastModified, Data: data}, nil
}
