package uploads

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindFor(t *testing.T) {
	tests := []struct {
		filename string
		expected string
	}{
		{"clip.mp4", "video"},
		{"CLIP.MP4", "video"},
		{"movie.webm", "video"},
		{"photo.png", "image"},
		{"photo.jpeg", "image"},
		{"noextension", "image"},
		{"archive.zip", "image"}, // unknown extensions default to image
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindFor(tt.filename))
		})
	}
}

func TestStoredName_MillisecondPrefix(t *testing.T) {
	name := storedName("photo.png")

	parts := strings.SplitN(name, "_", 2)
	require.Len(t, parts, 2)

	ms, err := strconv.ParseInt(parts[0], 10, 64)
	assert.NoError(t, err)
	assert.Greater(t, ms, int64(0))
	assert.Equal(t, "photo.png", parts[1])
}

func TestStoredName_Sanitizes(t *testing.T) {
	name := storedName("my photo (1).png")

	assert.NotContains(t, name, " ")
	assert.NotContains(t, name, "(")
	assert.True(t, strings.HasSuffix(name, ".png"))
}

func TestStoredName_HashFallback(t *testing.T) {
	name := storedName("写真.png")

	parts := strings.SplitN(name, "_", 2)
	require.Len(t, parts, 2)
	assert.True(t, strings.HasSuffix(parts[1], ".png"))
	assert.NotEqual(t, ".png", parts[1])
}

func TestStoredName_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		name := storedName("photo.png")
		assert.False(t, seen[name])
		seen[name] = true
	}
}

func multipartFile(t *testing.T, filename, content string) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", filename)
	require.NoError(t, err)
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))

	return req.MultipartForm.File["files"][0]
}

func TestSaveAndRemove(t *testing.T) {
	t.Setenv("upload_dir", t.TempDir())

	fh := multipartFile(t, "photo.png", "fake image bytes")

	item, err := Save(fh)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(item.URL, URLPrefix))
	assert.Equal(t, "image", item.Kind)

	stored := filepath.Join(Dir(), strings.TrimPrefix(item.URL, URLPrefix))
	content, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "fake image bytes", string(content))

	Remove(item.URL)
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err))
}

func TestRemove_IgnoresForeignURLs(t *testing.T) {
	t.Setenv("upload_dir", t.TempDir())

	// must not touch anything outside the upload dir
	Remove("https://elsewhere.example/file.png")
	Remove("/etc/passwd")
	Remove(URLPrefix + "../escape.txt")
}
