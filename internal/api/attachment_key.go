package api

import (
	"strings"
	"unicode/utf8"

	"talentflow/internal/storage"
)

func isValidAttachmentKey(jobID uint, key string) bool {
	if key == "" || !utf8.ValidString(key) || len(key) > 200 {
		return false
	}
	if !strings.HasPrefix(key, storage.AttachmentPrefix(jobID)) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	return true
}
