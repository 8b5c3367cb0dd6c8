package server

import (
	"mime/multipart"
	"net/http"
	"strings"

	"bookie/pkg/domain"
)

type createChapterRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request, profile domain.Profile, bookID int64) {
	switch r.Method {
	case http.MethodGet:
		chapters, err := s.app.ListChapters(bookID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": chapters, "count": len(chapters)})
	case http.MethodPost:
		var req createChapterRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		published, err := s.app.AddChapter(r.Context(), profile, bookID, req.Name, req.Content)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, published)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleChapterUpload(w http.ResponseWriter, r *http.Request, profile domain.Profile, bookID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()
	name := strings.TrimSpace(r.FormValue("name"))
	status, err := s.app.AddChapterFromFile(r.Context(), profile, bookID, name, header.Filename, file, header.Size)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

func (s *Server) handleReadChapter(w http.ResponseWriter, r *http.Request, user domain.User, profile domain.Profile, bookID int64, rawChapterID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	chapterID, ok := parseID(rawChapterID)
	if !ok {
		writeError(w, http.StatusNotFound, "chapter not found")
		return
	}
	chapter, err := s.app.ReadChapter(user, profile, bookID, chapterID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chapter)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request, user domain.User, profile domain.Profile) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	segments := pathSegments(r, "/jobs/")
	if len(segments) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	status, err := s.app.IngestJob(r.Context(), segments[0])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// formFile extracts the uploaded "file" part, enforcing the upload limit
// before the whole body is read.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1024)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return nil, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return nil, nil, false
	}
	return file, header, true
}
