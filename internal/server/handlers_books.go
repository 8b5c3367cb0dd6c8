package server

import (
	"net/http"
	"strconv"

	"bookie/pkg/domain"
)

type createBookRequest struct {
	Title        string  `json:"title"`
	Genre        string  `json:"genre"`
	Description  string  `json:"description"`
	ChapterPrice float64 `json:"chapterPrice"`
	BookPrice    float64 `json:"bookPrice"`
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, user domain.User, profile domain.Profile) {
	switch r.Method {
	case http.MethodGet:
		s.handleListBooks(w, r, profile)
	case http.MethodPost:
		s.handleCreateBook(w, r, profile)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	if r.URL.Query().Get("mine") == "true" {
		books, err := s.app.ListBooksByAuthor(profile.ID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": books, "count": len(books)})
		return
	}
	var finished *bool
	if raw := r.URL.Query().Get("finished"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid finished filter")
			return
		}
		finished = &v
	}
	books, err := s.app.ListBooks(r.URL.Query().Get("genre"), finished)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": books, "count": len(books)})
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request, profile domain.Profile) {
	var req createBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	book, err := s.app.CreateBook(profile, domain.Book{
		Title:        req.Title,
		Genre:        req.Genre,
		Description:  req.Description,
		ChapterPrice: req.ChapterPrice,
		BookPrice:    req.BookPrice,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleBookSubtree(w http.ResponseWriter, r *http.Request, user domain.User, profile domain.Profile) {
	segments := pathSegments(r, "/books/")
	if len(segments) == 0 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	bookID, ok := parseID(segments[0])
	if !ok {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}

	switch {
	case len(segments) == 1:
		s.handleGetBook(w, r, bookID)
	case len(segments) == 2 && segments[1] == "status":
		s.handleBookStatus(w, r, user, bookID)
	case len(segments) == 2 && segments[1] == "cover":
		s.handleBookCover(w, r, profile, bookID)
	case len(segments) == 2 && segments[1] == "finish":
		s.handleFinishBook(w, r, profile, bookID)
	case len(segments) == 2 && segments[1] == "subscribe":
		s.handleSubscribe(w, r, profile, bookID)
	case len(segments) == 2 && segments[1] == "unsubscribe":
		s.handleUnsubscribe(w, r, profile, bookID)
	case len(segments) == 2 && segments[1] == "chapters":
		s.handleChapters(w, r, profile, bookID)
	case len(segments) == 3 && segments[1] == "chapters" && segments[2] == "upload":
		s.handleChapterUpload(w, r, profile, bookID)
	case len(segments) == 3 && segments[1] == "chapters":
		s.handleReadChapter(w, r, user, profile, bookID, segments[2])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request, bookID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	book, err := s.app.GetBook(bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

type statusRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

func (s *Server) handleBookStatus(w http.ResponseWriter, r *http.Request, user domain.User, bookID int64) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	if user.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	book, err := s.app.SetBookStatus(bookID, domain.BookStatus(req.Status), req.Comment)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleFinishBook(w http.ResponseWriter, r *http.Request, profile domain.Profile, bookID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	book, err := s.app.FinishBook(profile, bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleBookCover(w http.ResponseWriter, r *http.Request, profile domain.Profile, bookID int64) {
	switch r.Method {
	case http.MethodPost:
		file, header, ok := s.formFile(w, r)
		if !ok {
			return
		}
		defer file.Close()
		book, err := s.app.UploadCover(r.Context(), profile, bookID, header.Filename, file, header.Size)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodGet:
		url, err := s.app.CoverURL(r.Context(), bookID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request, profile domain.Profile, bookID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.Subscribe(r.Context(), bookID, profile.ID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request, profile domain.Profile, bookID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.Unsubscribe(r.Context(), bookID, profile.ID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}
