package app

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// This message is intended to be shown to end users and should not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")

	ErrBookNotFound    = errors.New("book not found")
	ErrChapterNotFound = errors.New("chapter not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrUserNotFound    = errors.New("user not found")

	// ErrBookNotApproved gates subscription and publishing until moderation
	// has approved the book.
	ErrBookNotApproved = errors.New("book has not been approved")

	ErrSelfSubscription   = errors.New("cannot subscribe to your own book")
	ErrAlreadySubscribed  = errors.New("already subscribed to this book")
	ErrNotSubscribed      = errors.New("no subscription for this book")
	ErrInsufficientPoints = errors.New("insufficient points")

	ErrQuestionNotFound = errors.New("question not found")
	ErrAnswerNotFound   = errors.New("answer not found")

	ErrContentTooLarge = errors.New("uploaded content exceeds the size limit")

	ErrNotChapterOwner = errors.New("chapter is not in your owned set")

	ErrForbidden = errors.New("forbidden")
)

// BookRejectedError carries the moderation comment left when a book was
// rejected. The comment may be empty.
type BookRejectedError struct {
	Comment string
}

func (e *BookRejectedError) Error() string {
	if e.Comment == "" {
		return "book was rejected"
	}
	return fmt.Sprintf("book was rejected: %s", e.Comment)
}
