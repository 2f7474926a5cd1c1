package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"talentflow/internal/config"
)

// Client 封装 MinIO 客户端：内部地址用于读写，公共地址用于签发下载链接。
type Client struct {
	internalClient *minio.Client
	publicClient   *minio.Client
	bucketName     string
}

// NewClient 根据配置初始化 MinIO 客户端，并确保目标 Bucket 存在。
func NewClient(ctx context.Context, cfg config.MinIOConfig) (*Client, error) {
	bucketLookup, err := parseBucketLookup(cfg.BucketLookup)
	if err != nil {
		return nil, err
	}

	internalClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: bucketLookup,
	})
	if err != nil {
		return nil, fmt.Errorf("init internal minio client: %w", err)
	}

	publicClient := internalClient
	if cfg.PublicEndpoint != "" {
		parsed, err := url.Parse(cfg.PublicEndpoint)
		if err != nil {
			return nil, fmt.Errorf("parse minio public endpoint: %w", err)
		}
		if parsed.Host == "" {
			return nil, fmt.Errorf("invalid minio public endpoint, host missing")
		}
		publicClient, err = minio.New(parsed.Host, &minio.Options{
			Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			Secure:       parsed.Scheme == "https",
			Region:       cfg.Region,
			BucketLookup: bucketLookup,
		})
		if err != nil {
			return nil, fmt.Errorf("init public minio client: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := internalClient.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if !cfg.AutoCreateBucket {
			return nil, fmt.Errorf("bucket %q does not exist (auto create disabled)", cfg.Bucket)
		}
		if err := internalClient.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("make bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &Client{
		internalClient: internalClient,
		publicClient:   publicClient,
		bucketName:     cfg.Bucket,
	}, nil
}

func parseBucketLookup(raw string) (minio.BucketLookupType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return minio.BucketLookupAuto, nil
	case "dns":
		return minio.BucketLookupDNS, nil
	case "path":
		return minio.BucketLookupPath, nil
	default:
		return minio.BucketLookupAuto, fmt.Errorf("invalid minio bucket lookup %q", raw)
	}
}

// AttachmentKey 生成测评附件的对象键：assessments/{jobID}/{uuid}{ext}。
func AttachmentKey(jobID uint, fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, `\`, "/"))))
	if len(ext) > 16 {
		ext = ""
	}
	return fmt.Sprintf("%s%s%s", AttachmentPrefix(jobID), uuid.NewString(), ext)
}

// AttachmentPrefix 返回某岗位附件的对象键前缀。
func AttachmentPrefix(jobID uint) string {
	return fmt.Sprintf("assessments/%d/", jobID)
}

// UploadFile 将对象上传到私有 Bucket。
func (c *Client) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := c.internalClient.PutObject(ctx, c.bucketName, objectName, reader, size, opts); err != nil {
		return fmt.Errorf("put object %q: %w", objectName, err)
	}
	return nil
}

// GeneratePresignedURL 生成带下载文件名的限时链接。
func (c *Client) GeneratePresignedURL(ctx context.Context, objectKey, fileName string, duration time.Duration) (string, error) {
	var params url.Values
	if fileName != "" {
		params = url.Values{}
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	}
	presignedURL, err := c.publicClient.PresignedGetObject(ctx, c.bucketName, objectKey, duration, params)
	if err != nil {
		return "", fmt.Errorf("generate presigned url for %q: %w", objectKey, err)
	}
	return presignedURL.String(), nil
}

// DeleteObject 删除指定对象；对象不存在视为成功（幂等）。
func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	objectKey = strings.TrimSpace(objectKey)
	if objectKey == "" {
		return nil
	}
	if err := c.internalClient.RemoveObject(ctx, c.bucketName, objectKey, minio.RemoveObjectOptions{}); err != nil {
		if IsNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("remove object %q: %w", objectKey, err)
	}
	return nil
}
