package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type ProfileModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UserID      string `gorm:"uniqueIndex;not null"`
	DisplayName string
	Points      float64   `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time
}

type BookModel struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	AuthorID      int64  `gorm:"not null;index"`
	Title         string `gorm:"not null"`
	Genre         string `gorm:"index"`
	Description   string `gorm:"type:text"`
	ChapterPrice  float64 `gorm:"not null;default:0"`
	BookPrice     float64 `gorm:"not null;default:0"`
	IsFinished    bool    `gorm:"not null;default:false"`
	Status        string  `gorm:"not null;index"`
	StatusComment string
	CoverKey      string
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type ChapterModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	BookID    int64  `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
}

// SubscriptionModel keeps one row per (book, profile) pair. OwnedChapters is
// the entitlement codec's serialized form; CreatedAt fixes the batch charge
// order.
type SubscriptionModel struct {
	BookID        int64  `gorm:"primaryKey;autoIncrement:false"`
	ProfileID     int64  `gorm:"primaryKey;autoIncrement:false;index"`
	State         string `gorm:"not null"`
	OwnedChapters string
	BoughtAt      time.Time
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time
}

type DailyQuestionModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Question  string `gorm:"type:text;not null"`
	Points    float64 `gorm:"not null;default:0"`
	Date      datatypes.Date `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time      `gorm:"not null"`
}

type AnswerModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	QuestionID int64  `gorm:"not null;index"`
	Content    string `gorm:"not null"`
	Correct    bool   `gorm:"not null;default:false"`
}

type AnswerRecordModel struct {
	QuestionID int64     `gorm:"primaryKey;autoIncrement:false"`
	ProfileID  int64     `gorm:"primaryKey;autoIncrement:false;index"`
	IsCorrect  bool      `gorm:"not null;default:false"`
	AnsweredAt time.Time `gorm:"not null;index"`
}
