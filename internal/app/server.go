package app

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"ft-go/internal/ft"
)

// Server exposes the two raw blob endpoints. The full request URL, query
// string included, is the signed-URL token carrier: clients hit exactly the
// URL they were issued.
//
//	GET /file?signed=...   download a blob
//	PUT /file?signed=...   upload a blob (content type from the header)
type Server struct {
	bucket ft.Bucket
	logger ft.Logger
}

// NewServer creates a Server backed by the given bucket.
func NewServer(bucket ft.Bucket, logger ft.Logger) *Server {
	return &Server{bucket: bucket, logger: logger}
}

// Handler returns the HTTP handler for the blob endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /file", s.handleDownload)
	mux.HandleFunc("PUT /file", s.handleUpload)
	return mux
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	obj, err := s.bucket.FetchByToken(r.Context(), r.URL.String())
	if err != nil {
		s.writeError(w, "download", err)
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", obj.ContentLength))
	if !obj.LastModified.IsZero() {
		w.Header().Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(obj.Body)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}

	obj := ft.Object{
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
	}
	if err := s.bucket.StoreByToken(r.Context(), r.URL.String(), obj); err != nil {
		s.writeError(w, "upload", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps domain failures to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ft.ErrTokenExpired),
		errors.Is(err, ft.ErrTokenInvalid),
		errors.Is(err, ft.ErrOperationMismatch):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ft.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.logger.Error("blob endpoint failure", "op", op, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
