// Package imagestore saves uploaded product images on local disk or in a
// MinIO bucket.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

var allowExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

type Store interface {
	// Save 儲存圖片並回傳可公開存取的路徑
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

func IsValidImageExtension(filename string) bool {
	fileExt := strings.ToLower(filepath.Ext(filename))
	for _, allowExt := range allowExtensions {
		if fileExt == allowExt {
			return true
		}
	}
	return false
}

// MakeUniqueFileName 以上傳時間區分同名檔案，並移除路徑與空白
func MakeUniqueFileName(filename string, now time.Time) string {
	filename = filepath.Base(filepath.Clean("/" + filepath.ToSlash(filename)))
	fileExt := strings.ToLower(filepath.Ext(filename))
	fileBase := strings.TrimSuffix(filename, filepath.Ext(filename))
	fileBase = strings.Join(strings.Fields(fileBase), "_")
	if fileBase == "" || fileBase == "." {
		fileBase = "image"
	}
	return fmt.Sprintf("%s_%d%s", fileBase, now.UnixNano(), fileExt)
}
