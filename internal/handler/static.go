package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"camserver/internal/logger"
)

// StaticHandler serves files below root. "/" maps to index.html, paths that
// escape root are rejected with 403 and hidden files are not served.
func StaticHandler(root string, logger *logger.Logger) http.HandlerFunc {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = filepath.Clean(root)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" {
			name = "index.html"
		}

		requested := filepath.Join(absRoot, filepath.FromSlash(name))
		rel, err := filepath.Rel(absRoot, requested)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			logger.Warning("Path traversal attempt blocked: %s", r.URL.Path)
			writeText(w, http.StatusForbidden, "403 Forbidden")
			return
		}

		if isHidden(rel) {
			writeText(w, http.StatusNotFound, "404 file not found")
			return
		}

		info, err := os.Stat(requested)
		if err != nil || info.IsDir() {
			logger.Info("File not found: %s", name)
			writeText(w, http.StatusNotFound, "404 file not found")
			return
		}

		data, err := os.ReadFile(requested)
		if err != nil {
			logger.Error("Error reading %s: %v", name, err)
			writeText(w, http.StatusNotFound, "404 file not found")
			return
		}

		w.Header().Set("Content-Type", contentTypeFrom(name))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func isHidden(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

// contentTypeFrom maps a file extension to the MIME type sent for it.
func contentTypeFrom(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html":
		return "text/html"
	case ".css":
		return "text/css"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".svg":
		return "image/svg+xml"
	}
	return "application/octet-stream"
}
