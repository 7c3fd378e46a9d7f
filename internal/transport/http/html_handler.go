package http

import (
	"io/fs"
	"net/http"
)

// StaticHandler serves the embedded single-page frontend
type StaticHandler struct {
	fileServer http.Handler
	assets     fs.FS
}

// NewStaticHandler creates a handler over the embedded frontend filesystem
func NewStaticHandler(assets fs.FS) *StaticHandler {
	return &StaticHandler{
		fileServer: http.FileServer(http.FS(assets)),
		assets:     assets,
	}
}

// ServeIndex handles GET /: the single page that drives the whole app
func (h *StaticHandler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.assets, "index.html")
	if err != nil {
		http.Error(w, "frontend not available", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

// ServeAssets serves any other embedded static file
func (h *StaticHandler) ServeAssets(w http.ResponseWriter, r *http.Request) {
	h.fileServer.ServeHTTP(w, r)
}
