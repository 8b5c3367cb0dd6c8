package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"bookie/pkg/domain"
	"bookie/pkg/events"
	"bookie/pkg/ingest"
	"bookie/pkg/queue"
	"bookie/pkg/storage"
)

// PublishedChapter is the outcome of publishing one chapter: the chapter
// itself plus how many subscribers paid for it.
type PublishedChapter struct {
	Chapter      domain.Chapter `json:"chapter"`
	ChargedCount int            `json:"chargedCount"`
}

// AddChapter publishes a chapter from inline text and immediately runs the
// subscriber payout batch.
func (a *App) AddChapter(ctx context.Context, author domain.Profile, bookID int64, name, content string) (PublishedChapter, error) {
	book, err := a.GetBook(bookID)
	if err != nil {
		return PublishedChapter{}, err
	}
	if book.AuthorID != author.ID {
		return PublishedChapter{}, ErrForbidden
	}
	if book.Status != domain.StatusApproved {
		return PublishedChapter{}, ErrBookNotApproved
	}
	if strings.TrimSpace(content) == "" {
		return PublishedChapter{}, fmt.Errorf("chapter content required")
	}
	return a.publishChapter(ctx, book, name, content)
}

func (a *App) publishChapter(ctx context.Context, book domain.Book, name, content string) (PublishedChapter, error) {
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("Chapter %s", time.Now().UTC().Format("2006-01-02"))
	}
	chapter, err := a.store.CreateChapter(domain.Chapter{
		BookID:    book.ID,
		Name:      name,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return PublishedChapter{}, fmt.Errorf("create chapter: %w", err)
	}
	charged, err := a.ChargeSubscribersForNewChapter(book.ID, chapter.ID)
	if err != nil {
		return PublishedChapter{}, fmt.Errorf("charge subscribers: %w", err)
	}
	if err := a.events.PublishChapterPublished(ctx, events.ChapterPublished{
		BookID:       book.ID,
		ChapterID:    chapter.ID,
		ChargedCount: charged,
	}); err != nil {
		logEventError(ctx, "chapter.published", err)
	}
	return PublishedChapter{Chapter: chapter, ChargedCount: charged}, nil
}

// AddChapterFromFile stores an uploaded chapter document and enqueues its
// extraction. The chapter is published by the queue worker once the text has
// been pulled out of the document.
func (a *App) AddChapterFromFile(ctx context.Context, author domain.Profile, bookID int64, name, filename string, r io.Reader, size int64) (queue.JobStatus, error) {
	if a.objects == nil || a.queue == nil {
		return queue.JobStatus{}, fmt.Errorf("document ingestion not configured")
	}
	book, err := a.GetBook(bookID)
	if err != nil {
		return queue.JobStatus{}, err
	}
	if book.AuthorID != author.ID {
		return queue.JobStatus{}, ErrForbidden
	}
	if book.Status != domain.StatusApproved {
		return queue.JobStatus{}, ErrBookNotApproved
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !a.allowedExtensions[ext] || !ingest.SupportedExtension(filename) {
		return queue.JobStatus{}, ingest.ErrUnsupportedFormat
	}
	if size > a.maxUploadBytes {
		return queue.JobStatus{}, ErrContentTooLarge
	}

	key := storage.BuildKey("chapters", filename)
	if err := a.objects.Put(ctx, key, r, size, "application/octet-stream"); err != nil {
		return queue.JobStatus{}, fmt.Errorf("store document: %w", err)
	}
	status, err := a.queue.Enqueue(ctx, queue.Job{
		BookID:      bookID,
		StorageKey:  key,
		ChapterName: name,
		Filename:    filename,
	})
	if err != nil {
		_ = a.objects.Delete(ctx, key)
		return queue.JobStatus{}, fmt.Errorf("enqueue ingest: %w", err)
	}
	return status, nil
}

// ProcessIngestJob is the queue worker handler. It downloads the stored
// document, extracts its text, publishes the chapter, and reports how many
// subscribers were charged.
func (a *App) ProcessIngestJob(ctx context.Context, job queue.Job) (queue.Result, error) {
	if a.objects == nil {
		return queue.Result{}, fmt.Errorf("object storage not configured")
	}
	book, err := a.GetBook(job.BookID)
	if err != nil {
		return queue.Result{}, err
	}
	obj, err := a.objects.Get(ctx, job.StorageKey)
	if err != nil {
		return queue.Result{}, fmt.Errorf("fetch document: %w", err)
	}
	defer obj.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, obj); err != nil {
		return queue.Result{}, fmt.Errorf("read document: %w", err)
	}
	text, err := ingest.ExtractText(job.Filename, buf.Bytes())
	if err != nil {
		return queue.Result{}, fmt.Errorf("extract text: %w", err)
	}
	published, err := a.publishChapter(ctx, book, job.ChapterName, text)
	if err != nil {
		return queue.Result{}, err
	}
	return queue.Result{
		ChapterID:    published.Chapter.ID,
		ChargedCount: published.ChargedCount,
	}, nil
}

// IngestJob returns the status of an ingest job.
func (a *App) IngestJob(ctx context.Context, jobID string) (queue.JobStatus, error) {
	if a.queue == nil {
		return queue.JobStatus{}, fmt.Errorf("document ingestion not configured")
	}
	status, ok, err := a.queue.GetJob(ctx, jobID)
	if err != nil {
		return queue.JobStatus{}, fmt.Errorf("load job: %w", err)
	}
	if !ok {
		return queue.JobStatus{}, ErrChapterNotFound
	}
	return status, nil
}

// ListChapters returns the chapters of a book without their content, so
// anyone can browse the table of contents.
func (a *App) ListChapters(bookID int64) ([]domain.Chapter, error) {
	if _, err := a.GetBook(bookID); err != nil {
		return nil, err
	}
	chapters, err := a.store.ListChapters(bookID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	for i := range chapters {
		chapters[i].Content = ""
	}
	return chapters, nil
}

// ReadChapter returns a chapter's full content, gated on entitlement: the
// author, an admin, or a subscriber whose owned set contains the chapter.
func (a *App) ReadChapter(user domain.User, profile domain.Profile, bookID, chapterID int64) (domain.Chapter, error) {
	book, err := a.GetBook(bookID)
	if err != nil {
		return domain.Chapter{}, err
	}
	chapter, ok, err := a.store.GetChapter(chapterID)
	if err != nil {
		return domain.Chapter{}, fmt.Errorf("load chapter: %w", err)
	}
	if !ok || chapter.BookID != bookID {
		return domain.Chapter{}, ErrChapterNotFound
	}
	if user.Role == domain.RoleAdmin || book.AuthorID == profile.ID {
		return chapter, nil
	}
	sub, ok, err := a.store.GetSubscription(bookID, profile.ID)
	if err != nil {
		return domain.Chapter{}, fmt.Errorf("load subscription: %w", err)
	}
	if !ok || !sub.Owns(chapterID) {
		return domain.Chapter{}, ErrNotChapterOwner
	}
	return chapter, nil
}
