package uploads

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"chirper/models"
)

// MaxFilesPerRequest caps how many media files one tweet or profile request
// may carry.
const MaxFilesPerRequest = 9

// URLPrefix is the public path under which stored files are served.
const URLPrefix = "/uploads/"

// kinds inferred from the filename extension; everything else is an image
var videoExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".m4v":  true,
}

// Dir returns the upload directory from the environment, defaulting to
// ./uploads.
func Dir() string {
	if d := os.Getenv("upload_dir"); d != "" {
		return d
	}
	return "./uploads"
}

// KindFor classifies a filename as "video" or "image" by its extension.
func KindFor(filename string) string {
	if videoExtensions[strings.ToLower(filepath.Ext(filename))] {
		return "video"
	}
	return "image"
}

var (
	nameMu sync.Mutex
	lastMs int64
)

// uniqueMs returns a strictly increasing millisecond stamp so two files
// stored in the same millisecond cannot collide.
func uniqueMs() int64 {
	nameMu.Lock()
	defer nameMu.Unlock()
	ms := time.Now().UnixMilli()
	if ms <= lastMs {
		ms = lastMs + 1
	}
	lastMs = ms
	return ms
}

var safeExtRe = regexp.MustCompile(`^\.[a-z0-9]+$`)

// storedName renames an uploaded file with a millisecond prefix, keeping the
// sanitized original name. Names that sanitize away entirely fall back to an
// xxHash of the original.
func storedName(original string) string {
	base := filepath.Base(original)

	ext := strings.ToLower(filepath.Ext(base))
	if !safeExtRe.MatchString(ext) {
		ext = ""
	}

	stem := sanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = fmt.Sprintf("%016x", xxhash.Sum64String(original))
	}

	return fmt.Sprintf("%d_%s%s", uniqueMs(), stem, ext)
}

func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, name)
	return strings.Trim(name, ".-_")
}

// Save stores one uploaded file under Dir() and returns its media item with
// the public URL and inferred kind.
func Save(fh *multipart.FileHeader) (models.MediaItem, error) {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return models.MediaItem{}, err
	}

	name := storedName(fh.Filename)

	src, err := fh.Open()
	if err != nil {
		return models.MediaItem{}, err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(Dir(), name))
	if err != nil {
		return models.MediaItem{}, err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return models.MediaItem{}, err
	}

	return models.MediaItem{
		URL:  URLPrefix + name,
		Kind: KindFor(fh.Filename),
	}, nil
}

// Remove deletes the stored file behind a previously issued upload URL.
// Deletion is best effort: failures are logged, never surfaced.
func Remove(url string) {
	if !strings.HasPrefix(url, URLPrefix) {
		return
	}
	name := filepath.Base(strings.TrimPrefix(url, URLPrefix))
	if name == "" || name == "." {
		return
	}
	if err := os.Remove(filepath.Join(Dir(), name)); err != nil && !os.IsNotExist(err) {
		log.Printf("Error removing uploaded file %s: %v", name, err)
	}
}

// RemoveAll deletes every file of a media list, best effort.
func RemoveAll(media models.MediaList) {
	for _, item := range media {
		Remove(item.URL)
	}
}
