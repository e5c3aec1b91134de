package gateway

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// OverlayHandler serves the overlay page and script from a directory. A
// missing file gets a plain-text note instead of a 404 so the streaming
// software shows what is wrong.
type OverlayHandler struct {
	dir string
}

func NewOverlayHandler(dir string) *OverlayHandler {
	return &OverlayHandler{dir: dir}
}

func (h *OverlayHandler) serveFile(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(h.dir, name)
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprintf(w, "%s not found at: %s", name, path)
			return
		}
		http.ServeFile(w, r, path)
	}
}

// RegisterRoutes registers the overlay and root routes
func (h *OverlayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/overlay.html", h.serveFile("overlay.html"))
	mux.HandleFunc("/overlay.js", h.serveFile("overlay.js"))
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/overlay.html", http.StatusFound)
	})
}
