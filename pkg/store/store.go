package store

import (
	"time"

	"bookie/pkg/domain"
)

// BookFilter narrows ListBooks. Zero values mean "any".
type BookFilter struct {
	Genre    string
	Status   domain.BookStatus
	Finished *bool
	AuthorID int64
}

// Store defines persistence operations for users, profiles, books, chapters,
// subscriptions, and daily questions.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	HasAnyUser() (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// profiles
	CreateProfile(domain.Profile) (domain.Profile, error)
	GetProfile(id int64) (domain.Profile, bool, error)
	GetProfileByUser(userID string) (domain.Profile, bool, error)
	SaveProfile(domain.Profile) error

	// books
	CreateBook(domain.Book) (domain.Book, error)
	GetBook(id int64) (domain.Book, bool, error)
	ListBooks(filter BookFilter) ([]domain.Book, error)
	SaveBook(domain.Book) error
	DeleteBook(id int64) error

	// chapters
	CreateChapter(domain.Chapter) (domain.Chapter, error)
	GetChapter(id int64) (domain.Chapter, bool, error)
	ListChapters(bookID int64) ([]domain.Chapter, error)

	// subscriptions
	GetSubscription(bookID, profileID int64) (domain.Subscription, bool, error)
	SaveSubscription(domain.Subscription) error
	DeleteSubscription(bookID, profileID int64) error
	// ListActiveSubscribers returns the profiles holding an active
	// subscription to the book, in subscription creation order. That order
	// decides who still gets charged when balances run out mid-batch.
	ListActiveSubscribers(bookID int64) ([]domain.Profile, error)
	ListSubscriptionsByProfile(profileID int64) ([]domain.Subscription, error)

	// daily questions
	CreateQuestion(q domain.DailyQuestion, answers []domain.Answer) (domain.DailyQuestion, error)
	GetQuestion(id int64) (domain.DailyQuestion, bool, error)
	GetQuestionByDate(day time.Time) (domain.DailyQuestion, bool, error)
	ListQuestions() ([]domain.DailyQuestion, error)
	DeleteQuestion(id int64) error
	GetAnswer(id int64) (domain.Answer, bool, error)
	ListAnswers(questionID int64) ([]domain.Answer, error)

	// grading rows
	GetAnswerRecord(questionID, profileID int64) (domain.AnswerRecord, bool, error)
	LastAnswerRecord(profileID int64) (domain.AnswerRecord, bool, error)

	// ApplyCharge persists one reader debit, the matching author credit, and
	// the updated subscription row as a single unit, so a storage failure
	// cannot leave a debit without its credit.
	ApplyCharge(reader, author domain.Profile, sub domain.Subscription) error

	// ApplyGrade persists a grading row upsert together with the profile it
	// may have credited.
	ApplyGrade(profile domain.Profile, record domain.AnswerRecord) error
}
