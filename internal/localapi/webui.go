package localapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// spaHandler serves a built frontend, falling back to index.html for client-side routes.
type spaHandler struct {
	dist string
}

func newSPAHandler(dist string) http.Handler {
	return &spaHandler{dist: dist}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	clean := filepath.Clean("/" + r.URL.Path)
	if strings.HasPrefix(clean, "/api/") {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "not found")
		return
	}
	indexPath := filepath.Join(h.dist, "index.html")
	if clean == "/" {
		http.ServeFile(w, r, indexPath)
		return
	}
	candidate := filepath.Join(h.dist, strings.TrimPrefix(clean, "/"))
	if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
		http.ServeFile(w, r, candidate)
		return
	}
	http.ServeFile(w, r, indexPath)
}
