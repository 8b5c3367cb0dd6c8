package app

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"bookie/pkg/domain"
	"bookie/pkg/storage"
	"bookie/pkg/store"
)

// CreateBook submits a new book for moderation on behalf of its author.
func (a *App) CreateBook(author domain.Profile, book domain.Book) (domain.Book, error) {
	if strings.TrimSpace(book.Title) == "" {
		return domain.Book{}, fmt.Errorf("title required")
	}
	if book.ChapterPrice < 0 || book.BookPrice < 0 {
		return domain.Book{}, fmt.Errorf("prices must be >= 0")
	}
	now := time.Now().UTC()
	book.ID = 0
	book.AuthorID = author.ID
	book.Status = domain.StatusSubmitted
	book.StatusComment = ""
	book.CoverKey = ""
	book.CreatedAt = now
	book.UpdatedAt = now
	created, err := a.store.CreateBook(book)
	if err != nil {
		return domain.Book{}, fmt.Errorf("create book: %w", err)
	}
	return created, nil
}

// GetBook retrieves a book by ID.
func (a *App) GetBook(id int64) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// ListBooks returns approved books filtered by genre and finished flag.
// Readers only see books that passed moderation.
func (a *App) ListBooks(genre string, finished *bool) ([]domain.Book, error) {
	return a.store.ListBooks(store.BookFilter{
		Genre:    genre,
		Status:   domain.StatusApproved,
		Finished: finished,
	})
}

// ListBooksByAuthor returns every book of an author regardless of moderation
// state, so authors can see their own submissions.
func (a *App) ListBooksByAuthor(authorID int64) ([]domain.Book, error) {
	return a.store.ListBooks(store.BookFilter{AuthorID: authorID})
}

// SetBookStatus records a moderation decision. Approving clears any previous
// rejection comment; rejecting stores the moderator's comment.
func (a *App) SetBookStatus(bookID int64, status domain.BookStatus, comment string) (domain.Book, error) {
	switch status {
	case domain.StatusApproved, domain.StatusRejected, domain.StatusSubmitted:
	default:
		return domain.Book{}, fmt.Errorf("unknown book status %q", status)
	}
	book, err := a.GetBook(bookID)
	if err != nil {
		return domain.Book{}, err
	}
	book.Status = status
	if status == domain.StatusRejected {
		book.StatusComment = comment
	} else {
		book.StatusComment = ""
	}
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// FinishBook marks a book as complete. Only the author may finish it.
func (a *App) FinishBook(author domain.Profile, bookID int64) (domain.Book, error) {
	book, err := a.GetBook(bookID)
	if err != nil {
		return domain.Book{}, err
	}
	if book.AuthorID != author.ID {
		return domain.Book{}, ErrForbidden
	}
	book.IsFinished = true
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// UploadCover stores a cover image and records its key on the book.
func (a *App) UploadCover(ctx context.Context, author domain.Profile, bookID int64, filename string, r io.Reader, size int64) (domain.Book, error) {
	if a.objects == nil {
		return domain.Book{}, fmt.Errorf("object storage not configured")
	}
	book, err := a.GetBook(bookID)
	if err != nil {
		return domain.Book{}, err
	}
	if book.AuthorID != author.ID {
		return domain.Book{}, ErrForbidden
	}
	if size > a.maxUploadBytes {
		return domain.Book{}, ErrContentTooLarge
	}
	key := storage.BuildKey("covers", filename)
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Book{}, fmt.Errorf("store cover: %w", err)
	}
	oldKey := book.CoverKey
	book.CoverKey = key
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		_ = a.objects.Delete(ctx, key)
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	if oldKey != "" {
		_ = a.objects.Delete(ctx, oldKey)
	}
	return book, nil
}

// CoverURL returns a presigned download URL for the book's cover.
func (a *App) CoverURL(ctx context.Context, bookID int64) (string, error) {
	if a.objects == nil {
		return "", fmt.Errorf("object storage not configured")
	}
	book, err := a.GetBook(bookID)
	if err != nil {
		return "", err
	}
	if book.CoverKey == "" {
		return "", ErrBookNotFound
	}
	url, err := a.objects.PresignGet(ctx, book.CoverKey, a.presignExpiry)
	if err != nil {
		return "", fmt.Errorf("presign cover: %w", err)
	}
	return url, nil
}
