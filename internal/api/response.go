package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"talentflow/internal/assessment"
	"talentflow/internal/errcode"
	"talentflow/internal/fault"
	"talentflow/internal/store"
)

func Error(c *gin.Context, status, code int, msg string) {
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, errcode.InvalidArgument, msg)
}
func NotFound(c *gin.Context, msg string) { Error(c, http.StatusNotFound, errcode.ResourceMissing, msg) }
func Conflict(c *gin.Context, msg string) { Error(c, http.StatusConflict, errcode.Conflict, msg) }
func Internal(c *gin.Context, msg string) { Error(c, http.StatusInternalServerError, errcode.SystemError, msg) }

// respondStoreError 将存储层错误映射为 HTTP 状态码与错误码。
func respondStoreError(c *gin.Context, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, fault.ErrSimulated):
		log.Warn("simulated failure", slog.Any("error", err))
		Error(c, http.StatusInternalServerError, errcode.SimulatedFailure, err.Error())
	case errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrCandidateNotFound),
		errors.Is(err, store.ErrAssessmentNotFound),
		errors.Is(err, store.ErrSubmissionNotFound),
		errors.Is(err, store.ErrAttachmentNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, store.ErrStaleOrder),
		errors.Is(err, store.ErrDuplicateSlug),
		errors.Is(err, store.ErrDuplicateEmail):
		Conflict(c, err.Error())
	case errors.Is(err, store.ErrIllegalTransition),
		errors.Is(err, assessment.ErrInvalidDocument):
		Error(c, http.StatusBadRequest, errcode.ValidationFailed, err.Error())
	case errors.Is(err, store.ErrOrderOutOfRange),
		errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, store.ErrInvalidStage),
		errors.Is(err, store.ErrEmptyTitle),
		errors.Is(err, store.ErrEmptyNote),
		errors.Is(err, store.ErrInvalidCandidate):
		BadRequest(c, err.Error())
	default:
		log.Error("store operation failed", slog.Any("error", err))
		Internal(c, "internal error")
	}
}

// writeList 以数组形式返回当前页，总数放在 X-Total-Count 头中；envelope 为 true 时包一层 {data,total}。
func writeList[T any](c *gin.Context, items []T, total int64, envelope bool) {
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	if envelope {
		c.JSON(http.StatusOK, gin.H{"data": items, "total": total})
		return
	}
	c.JSON(http.StatusOK, items)
}

// parseID 读取路径中的正整数 ID。
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
