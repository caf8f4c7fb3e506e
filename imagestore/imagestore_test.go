package imagestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidImageExtension(t *testing.T) {
	for _, name := range []string{"a.jpg", "a.JPEG", "b.png", "c.webp"} {
		assert.True(t, IsValidImageExtension(name), name)
	}
	for _, name := range []string{"a.gif", "a.exe", "noext", "a.png.sh"} {
		assert.False(t, IsValidImageExtension(name), name)
	}
}

func TestMakeUniqueFileName(t *testing.T) {
	now := time.Unix(0, 42)
	assert.Equal(t, "my_laptop_42.png", MakeUniqueFileName("my laptop.PNG", now))
	assert.Equal(t, "passwd_42.jpg", MakeUniqueFileName("../../etc/passwd.jpg", now))
	assert.Equal(t, "image_42.jpg", MakeUniqueFileName(".jpg", now))
}

func TestLocalSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store := NewLocal(dir)

	path, err := store.Save(context.Background(), "laptop_1.png", strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/laptop_1.png", path)

	data, err := os.ReadFile(filepath.Join(dir, "laptop_1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	// 不覆蓋既有檔案
	_, err = store.Save(context.Background(), "laptop_1.png", strings.NewReader("other"), 5, "image/png")
	assert.Error(t, err)
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in           string
		wantEndpoint string
		wantSecure   bool
		wantErr      bool
	}{
		{"minio:9000", "minio:9000", false, false},
		{"http://minio:9000", "minio:9000", false, false},
		{"https://minio:9000", "minio:9000", true, false},
		{"http://minio:9000/", "minio:9000", false, false},
		{"http://minio:9000/foo", "", false, true},
		{"", "", false, true},
	}

	for _, tt := range tests {
		ep, secure, err := normaliseEndpoint(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.wantEndpoint, ep, tt.in)
		assert.Equal(t, tt.wantSecure, secure, tt.in)
	}
}

func TestObjectURL(t *testing.T) {
	m := &Minio{bucket: "products", publicURL: publicBaseURL("", "minio:9000", false)}
	assert.Equal(t, "http://minio:9000/products/a_1.png", m.objectURL("a_1.png"))

	m.publicURL = publicBaseURL("https://cdn.example.com/", "minio:9000", false)
	assert.Equal(t, "https://cdn.example.com/products/a_1.png", m.objectURL("a_1.png"))
}
