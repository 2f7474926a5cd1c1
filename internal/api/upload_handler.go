package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"

	"talentflow/internal/api/middleware"
	"talentflow/internal/database"
	"talentflow/internal/errcode"
	"talentflow/internal/storage"
)

// ObjectStorage 是上传接口依赖的对象存储能力，*storage.Client 实现了它。
type ObjectStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	GeneratePresignedURL(ctx context.Context, objectKey, fileName string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// AttachmentStore 记录附件元数据，*store.AssessmentStore 实现了它。
type AttachmentStore interface {
	AddAttachment(ctx context.Context, a database.Attachment) (database.Attachment, error)
	FindAttachment(ctx context.Context, jobID uint, key string) (database.Attachment, error)
}

const (
	defaultMaxUploadBytes = 10 << 20
	defaultUploadsPerDay  = 200
	attachmentURLLifetime = 15 * time.Minute
)

// UploadHandler 处理文件题附件：病毒扫描、上传到对象存储并登记元数据。
type UploadHandler struct {
	store         AttachmentStore
	Storage       ObjectStorage
	ClamdAddr     string
	MaxBytes      int64
	MIMEWhitelist []string
	quota         uploadQuota
}

// NewUploadHandler 返回 UploadHandler 实例。redisClient 为 nil 时不限制上传频率。
func NewUploadHandler(s AttachmentStore, storageClient ObjectStorage, redisClient redisRateCounter, clamdAddr string) *UploadHandler {
	return &UploadHandler{
		store:         s,
		Storage:       storageClient,
		ClamdAddr:     clamdAddr,
		MaxBytes:      defaultMaxUploadBytes,
		quota:         uploadQuota{client: redisClient, limit: defaultUploadsPerDay, now: time.Now},
	}
}

// UploadAttachment 接收 multipart 字段 file，返回可作为文件题答案的对象键。
func (h *UploadHandler) UploadAttachment(c *gin.Context) {
	jobID, ok := parseID(c, "jobId")
	if !ok {
		return
	}
	log := middleware.LoggerFromContext(c).With(slog.Uint64("job_id", uint64(jobID)))
	ctx := c.Request.Context()

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if h.MaxBytes > 0 && file.Size > h.MaxBytes {
		Error(c, http.StatusRequestEntityTooLarge, errcode.InvalidArgument, fmt.Sprintf("file exceeds %d bytes", h.MaxBytes))
		return
	}
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if !h.allowedType(contentType) {
		Error(c, http.StatusUnsupportedMediaType, errcode.InvalidArgument, "file type not allowed")
		return
	}

	allowed, err := h.quota.allow(ctx, jobID)
	if err != nil {
		log.Warn("upload quota unavailable", slog.Any("error", err))
	} else if !allowed {
		Error(c, http.StatusTooManyRequests, errcode.InvalidArgument, "daily upload limit reached")
		return
	}

	if err := h.scan(file); err != nil {
		if errors.Is(err, errMaliciousFile) {
			BadRequest(c, "malicious file detected")
			return
		}
		log.Error("scan file", slog.Any("error", err))
		Internal(c, "failed to scan file")
		return
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	defer reader.Close()

	objectKey := storage.AttachmentKey(jobID, file.Filename)
	if err := h.Storage.UploadFile(ctx, objectKey, reader, file.Size, contentType); err != nil {
		log.Error("upload file", slog.Any("error", err))
		Internal(c, "failed to upload file")
		return
	}

	att, err := h.store.AddAttachment(ctx, database.Attachment{
		JobID:       jobID,
		ObjectKey:   objectKey,
		FileName:    path.Base(strings.ReplaceAll(file.Filename, `\`, "/")),
		ContentType: contentType,
		Size:        file.Size,
	})
	if err != nil {
		if delErr := h.Storage.DeleteObject(ctx, objectKey); delErr != nil {
			log.Warn("delete orphaned object", slog.String("object_key", objectKey), slog.Any("error", delErr))
		}
		respondStoreError(c, log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"objectKey":   att.ObjectKey,
		"fileName":    att.FileName,
		"contentType": att.ContentType,
		"size":        att.Size,
	})
}

// GetAttachmentURL 返回附件的限时下载链接。
func (h *UploadHandler) GetAttachmentURL(c *gin.Context) {
	jobID, ok := parseID(c, "jobId")
	if !ok {
		return
	}
	key := c.Query("key")
	if !isValidAttachmentKey(jobID, key) {
		BadRequest(c, "invalid key")
		return
	}

	att, err := h.store.FindAttachment(c.Request.Context(), jobID, key)
	if err != nil {
		respondStoreError(c, middleware.LoggerFromContext(c), err)
		return
	}

	signedURL, err := h.Storage.GeneratePresignedURL(c.Request.Context(), att.ObjectKey, att.FileName, attachmentURLLifetime)
	if err != nil {
		middleware.LoggerFromContext(c).Error("generate presigned url", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": signedURL, "expiresIn": int(attachmentURLLifetime.Seconds())})
}

func (h *UploadHandler) allowedType(contentType string) bool {
	if len(h.MIMEWhitelist) == 0 {
		return true
	}
	base := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, allowed := range h.MIMEWhitelist {
		if base == allowed {
			return true
		}
	}
	return false
}

var errMaliciousFile = errors.New("malicious file")

// scan 通过 clamd 扫描文件；未配置 clamd 地址时跳过。
func (h *UploadHandler) scan(file *multipart.FileHeader) error {
	if h.ClamdAddr == "" {
		return nil
	}
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer reader.Close()

	abortChan := make(chan bool)
	defer close(abortChan)
	results, err := clamd.NewClamd(h.ClamdAddr).ScanStream(reader, abortChan)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	for result := range results {
		if result.Status != clamd.RES_OK {
			return errMaliciousFile
		}
	}
	return nil
}
