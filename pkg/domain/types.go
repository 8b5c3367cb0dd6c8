package domain

import "time"

type BookStatus string

const (
	StatusSubmitted BookStatus = "submitted"
	StatusApproved  BookStatus = "approved"
	StatusRejected  BookStatus = "rejected"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type SubscriptionState string

const (
	// SubscriptionActive entitles the profile to every chapter published
	// while the subscription stays in this state.
	SubscriptionActive SubscriptionState = "active"
	// SubscriptionLapsed keeps the owned-chapter set around so a later
	// resubscription can charge only for the chapters missed in between.
	SubscriptionLapsed SubscriptionState = "lapsed"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile carries the point balance of one user. The balance is mutated only
// by the accounting operations in internal/app and never goes negative.
type Profile struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Points      float64   `json:"points"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Book struct {
	ID            int64      `json:"id"`
	AuthorID      int64      `json:"authorId"`
	Title         string     `json:"title"`
	Genre         string     `json:"genre"`
	Description   string     `json:"description"`
	ChapterPrice  float64    `json:"chapterPrice"`
	BookPrice     float64    `json:"bookPrice"`
	IsFinished    bool       `json:"isFinished"`
	Status        BookStatus `json:"status"`
	StatusComment string     `json:"statusComment,omitempty"`
	CoverKey      string     `json:"-"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type Chapter struct {
	ID        int64     `json:"id"`
	BookID    int64     `json:"bookId"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscription is the per (book, profile) entitlement row. OwnedChapters is
// the set of chapter ids the profile has paid for; it only grows while the
// row exists. A lapsed row is kept so the catch-up delta can be computed on
// resubscription.
type Subscription struct {
	BookID        int64             `json:"bookId"`
	ProfileID     int64             `json:"profileId"`
	State         SubscriptionState `json:"state"`
	OwnedChapters []int64           `json:"ownedChapters"`
	BoughtAt      time.Time         `json:"boughtAt"`
}

// Owns reports whether the subscription entitles the profile to chapterID.
func (s Subscription) Owns(chapterID int64) bool {
	for _, id := range s.OwnedChapters {
		if id == chapterID {
			return true
		}
	}
	return false
}

type DailyQuestion struct {
	ID       int64     `json:"id"`
	Question string    `json:"question"`
	Points   float64   `json:"points"`
	Date     time.Time `json:"date"`
}

// Answer is one choice of a daily question. Exactly one answer per question
// carries Correct=true.
type Answer struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"questionId"`
	Content    string `json:"content"`
	Correct    bool   `json:"correct"`
}

// AnswerRecord is the grading row for one profile's latest submission to one
// daily question. At most one record exists per (question, profile) pair.
type AnswerRecord struct {
	QuestionID int64     `json:"questionId"`
	ProfileID  int64     `json:"profileId"`
	IsCorrect  bool      `json:"isCorrect"`
	AnsweredAt time.Time `json:"answeredAt"`
}
