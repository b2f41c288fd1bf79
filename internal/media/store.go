// Package media stores evidence files attached to public submissions.
package media

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/seeit/report-server/internal/apperr"
)

// URLPrefix is the public path files are served under.
const URLPrefix = "/uploads/"

// Store writes uploads to a local directory.
type Store struct {
	dir      string
	maxSize  int64
	maxFiles int
}

// NewStore creates the upload directory if needed.
func NewStore(dir string, maxSize int64, maxFiles int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, maxSize: maxSize, maxFiles: maxFiles}, nil
}

// Dir is the directory files are written to.
func (s *Store) Dir() string {
	return s.dir
}

// MaxRequestBytes bounds a whole multipart submission: every file at its
// limit plus room for the text fields.
func (s *Store) MaxRequestBytes() int64 {
	return int64(s.maxFiles)*s.maxSize + 1<<20
}

// SaveAll stores files in order and returns their public URLs. Only images
// and videos are accepted; images are re-encoded without their metadata. If
// any file is rejected, the ones already written are removed.
func (s *Store) SaveAll(files []*multipart.FileHeader) ([]string, error) {
	if len(files) > s.maxFiles {
		return nil, apperr.Validation("media", "at most %d files allowed", s.maxFiles)
	}

	urls := make([]string, 0, len(files))
	for _, fh := range files {
		url, err := s.save(fh)
		if err != nil {
			s.Remove(urls)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// Remove deletes previously saved files by URL. Unknown URLs are ignored.
func (s *Store) Remove(urls []string) {
	for _, u := range urls {
		name := path.Base(strings.TrimPrefix(u, URLPrefix))
		if name == "." || name == "/" {
			continue
		}
		os.Remove(filepath.Join(s.dir, name))
	}
}

func (s *Store) save(fh *multipart.FileHeader) (string, error) {
	if fh.Size > s.maxSize {
		return "", apperr.Validation("media", "%s exceeds %d bytes", fh.Filename, s.maxSize)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, s.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return "", apperr.Validation("media", "%s exceeds %d bytes", fh.Filename, s.maxSize)
	}

	var ext string
	contentType := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(contentType, "image/"):
		data, ext, err = sanitizeImage(data)
		if err != nil {
			return "", err
		}
	case strings.HasPrefix(contentType, "video/"):
		ext = extension(fh.Filename, contentType)
	default:
		return "", apperr.Validation("media", "only image and video files are allowed")
	}

	name := uuid.NewString() + ext
	dst := filepath.Join(s.dir, name)
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	_, err = out.Write(data)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("write upload file: %w", err)
	}

	return URLPrefix + name, nil
}

// extension keeps the client's extension for a video when it is short and
// plain, otherwise derives one from the sniffed type.
func extension(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 1 && len(ext) <= 6 && isAlnum(ext[1:]) {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
