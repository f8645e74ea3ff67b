package httpapi

import (
	"net/http"
	"strconv"
)

// handleThumb serves a cached thumbnail. Placeholders are marked with
// X-Thumb-Placeholder and never cached by the browser, so a later fix
// of the source file shows up.
func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	flags, err := s.Store.GetFeatureFlags(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if !flags.Thumbnails || s.Thumbs == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "thumbnails disabled"})
		return
	}
	_, abs, _, err := s.resolveTarget(r, sessionFrom(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	refresh := r.URL.Query().Get("refresh") == "1"
	data, placeholder, err := s.Thumbs.Get(r.Context(), abs, size, refresh)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	w.Header().Set("content-type", "image/jpeg")
	if placeholder {
		w.Header().Set("X-Thumb-Placeholder", "1")
		w.Header().Set("cache-control", "no-store")
	} else {
		w.Header().Set("cache-control", "private, max-age=86400, immutable")
	}
	w.Header().Set("content-length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// handleRenderImage converts formats browsers cannot show (HEIC, TIFF,
// rotated JPEGs) into plain JPEG.
func (s *Server) handleRenderImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if s.Thumbs == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "rendering unavailable"})
		return
	}
	flags, err := s.Store.GetFeatureFlags(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	_, abs, _, err := s.resolveTarget(r, sessionFrom(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	maxDim, _ := strconv.Atoi(r.URL.Query().Get("max_dim"))

	data, err := s.Thumbs.RenderImage(r.Context(), abs, maxDim, flags.HEIC)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "cannot render image"})
		return
	}
	w.Header().Set("content-type", "image/jpeg")
	w.Header().Set("cache-control", "private, max-age=3600")
	w.Header().Set("content-length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
