package imagestore

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
)

// Local 存在本機資料夾，由 /uploads 靜態路徑提供
type Local struct {
	Dir       string
	URLPrefix string
}

func NewLocal(dir string) *Local {
	return &Local{Dir: dir, URLPrefix: "/uploads"}
}

func (l *Local) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	//檢查uploads資料夾是否存在，如不存在則創建
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return "", err
	}

	filePath := filepath.Join(l.Dir, filepath.Base(name))
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		_ = os.Remove(filePath)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(filePath)
		return "", err
	}

	return path.Join(l.URLPrefix, filepath.Base(name)), nil
}
