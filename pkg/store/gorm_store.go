package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookie/pkg/domain"
	"bookie/pkg/entitlement"
)

const migrateLockID int64 = 52905290

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent instances do not race on schema changes.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&ProfileModel{},
			&BookModel{},
			&ChapterModel{},
			&SubscriptionModel{},
			&DailyQuestionModel{},
			&AnswerModel{},
			&AnswerRecordModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "role", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasAnyUser reports whether any user account exists.
func (s *GormStore) HasAnyUser() (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CreateProfile inserts a profile and returns it with the assigned ID.
func (s *GormStore) CreateProfile(p domain.Profile) (domain.Profile, error) {
	model := profileToModel(p)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Profile{}, err
	}
	return profileFromModel(model), nil
}

// GetProfile returns a profile by ID.
func (s *GormStore) GetProfile(id int64) (domain.Profile, bool, error) {
	var model ProfileModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// GetProfileByUser returns the profile owned by a user account.
func (s *GormStore) GetProfileByUser(userID string) (domain.Profile, bool, error) {
	var model ProfileModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// SaveProfile updates an existing profile.
func (s *GormStore) SaveProfile(p domain.Profile) error {
	model := profileToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "points", "updated_at"}),
	}).Create(&model).Error
}

// CreateBook inserts a book and returns it with the assigned ID.
func (s *GormStore) CreateBook(b domain.Book) (domain.Book, error) {
	model := bookToModel(b)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Book{}, err
	}
	return bookFromModel(model), nil
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id int64) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns books matching the filter ordered by created_at.
func (s *GormStore) ListBooks(filter BookFilter) ([]domain.Book, error) {
	tx := s.db.Order("created_at ASC")
	if filter.Genre != "" {
		tx = tx.Where("genre = ?", filter.Genre)
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	if filter.Finished != nil {
		tx = tx.Where("is_finished = ?", *filter.Finished)
	}
	if filter.AuthorID != 0 {
		tx = tx.Where("author_id = ?", filter.AuthorID)
	}
	var models []BookModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// SaveBook stores or updates a book.
func (s *GormStore) SaveBook(b domain.Book) error {
	model := bookToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "genre", "description", "chapter_price", "book_price",
			"is_finished", "status", "status_comment", "cover_key", "updated_at",
		}),
	}).Create(&model).Error
}

// DeleteBook removes a book with its chapters and subscription rows.
func (s *GormStore) DeleteBook(id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ChapterModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&SubscriptionModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&BookModel{}, "id = ?", id).Error
	})
}

// CreateChapter inserts a chapter and returns it with the assigned ID.
func (s *GormStore) CreateChapter(c domain.Chapter) (domain.Chapter, error) {
	model := chapterToModel(c)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Chapter{}, err
	}
	return chapterFromModel(model), nil
}

// GetChapter retrieves a chapter.
func (s *GormStore) GetChapter(id int64) (domain.Chapter, bool, error) {
	var model ChapterModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Chapter{}, false, nil
		}
		return domain.Chapter{}, false, err
	}
	return chapterFromModel(model), true, nil
}

// ListChapters returns the chapters of a book in publication order.
func (s *GormStore) ListChapters(bookID int64) ([]domain.Chapter, error) {
	var models []ChapterModel
	if err := s.db.Where("book_id = ?", bookID).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Chapter, 0, len(models))
	for _, m := range models {
		res = append(res, chapterFromModel(m))
	}
	return res, nil
}

// GetSubscription returns the subscription row for a (book, profile) pair.
func (s *GormStore) GetSubscription(bookID, profileID int64) (domain.Subscription, bool, error) {
	var model SubscriptionModel
	if err := s.db.First(&model, "book_id = ? AND profile_id = ?", bookID, profileID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Subscription{}, false, nil
		}
		return domain.Subscription{}, false, err
	}
	return subscriptionFromModel(model), true, nil
}

// SaveSubscription upserts a subscription row.
func (s *GormStore) SaveSubscription(sub domain.Subscription) error {
	model := subscriptionToModel(sub)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "book_id"}, {Name: "profile_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "owned_chapters", "bought_at", "updated_at"}),
	}).Create(&model).Error
}

// DeleteSubscription removes the row entirely; the owned set is lost.
func (s *GormStore) DeleteSubscription(bookID, profileID int64) error {
	return s.db.Delete(&SubscriptionModel{}, "book_id = ? AND profile_id = ?", bookID, profileID).Error
}

// ListActiveSubscribers returns profiles with an active subscription to the
// book, ordered by subscription creation time.
func (s *GormStore) ListActiveSubscribers(bookID int64) ([]domain.Profile, error) {
	var models []ProfileModel
	if err := s.db.Model(&ProfileModel{}).
		Joins("JOIN subscription_models ON subscription_models.profile_id = profile_models.id").
		Where("subscription_models.book_id = ? AND subscription_models.state = ?", bookID, string(domain.SubscriptionActive)).
		Order("subscription_models.created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Profile, 0, len(models))
	for _, m := range models {
		res = append(res, profileFromModel(m))
	}
	return res, nil
}

// ListSubscriptionsByProfile returns every subscription row of a profile.
func (s *GormStore) ListSubscriptionsByProfile(profileID int64) ([]domain.Subscription, error) {
	var models []SubscriptionModel
	if err := s.db.Where("profile_id = ?", profileID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Subscription, 0, len(models))
	for _, m := range models {
		res = append(res, subscriptionFromModel(m))
	}
	return res, nil
}

// CreateQuestion inserts a question with its answers in one transaction.
func (s *GormStore) CreateQuestion(q domain.DailyQuestion, answers []domain.Answer) (domain.DailyQuestion, error) {
	model := questionToModel(q)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		for i := range answers {
			answerModel := AnswerModel{
				QuestionID: model.ID,
				Content:    answers[i].Content,
				Correct:    answers[i].Correct,
			}
			if err := tx.Create(&answerModel).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.DailyQuestion{}, err
	}
	return questionFromModel(model), nil
}

// GetQuestion retrieves a question by ID.
func (s *GormStore) GetQuestion(id int64) (domain.DailyQuestion, bool, error) {
	var model DailyQuestionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.DailyQuestion{}, false, nil
		}
		return domain.DailyQuestion{}, false, err
	}
	return questionFromModel(model), true, nil
}

// GetQuestionByDate returns the question scheduled for the given calendar day.
func (s *GormStore) GetQuestionByDate(day time.Time) (domain.DailyQuestion, bool, error) {
	var model DailyQuestionModel
	if err := s.db.First(&model, "date = ?", datatypes.Date(day)).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.DailyQuestion{}, false, nil
		}
		return domain.DailyQuestion{}, false, err
	}
	return questionFromModel(model), true, nil
}

// ListQuestions returns all questions, newest first.
func (s *GormStore) ListQuestions() ([]domain.DailyQuestion, error) {
	var models []DailyQuestionModel
	if err := s.db.Order("date DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.DailyQuestion, 0, len(models))
	for _, m := range models {
		res = append(res, questionFromModel(m))
	}
	return res, nil
}

// DeleteQuestion removes a question together with its answers and grading rows.
func (s *GormStore) DeleteQuestion(id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&AnswerModel{}, "question_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&AnswerRecordModel{}, "question_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&DailyQuestionModel{}, "id = ?", id).Error
	})
}

// GetAnswer retrieves one answer choice.
func (s *GormStore) GetAnswer(id int64) (domain.Answer, bool, error) {
	var model AnswerModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Answer{}, false, nil
		}
		return domain.Answer{}, false, err
	}
	return answerFromModel(model), true, nil
}

// ListAnswers returns the answer choices of a question.
func (s *GormStore) ListAnswers(questionID int64) ([]domain.Answer, error) {
	var models []AnswerModel
	if err := s.db.Where("question_id = ?", questionID).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Answer, 0, len(models))
	for _, m := range models {
		res = append(res, answerFromModel(m))
	}
	return res, nil
}

// GetAnswerRecord returns the grading row for a (question, profile) pair.
func (s *GormStore) GetAnswerRecord(questionID, profileID int64) (domain.AnswerRecord, bool, error) {
	var model AnswerRecordModel
	if err := s.db.First(&model, "question_id = ? AND profile_id = ?", questionID, profileID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.AnswerRecord{}, false, nil
		}
		return domain.AnswerRecord{}, false, err
	}
	return answerRecordFromModel(model), true, nil
}

// LastAnswerRecord returns the most recent grading row of a profile.
func (s *GormStore) LastAnswerRecord(profileID int64) (domain.AnswerRecord, bool, error) {
	var model AnswerRecordModel
	if err := s.db.Where("profile_id = ?", profileID).
		Order("answered_at DESC").
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.AnswerRecord{}, false, nil
		}
		return domain.AnswerRecord{}, false, err
	}
	return answerRecordFromModel(model), true, nil
}

// ApplyCharge persists one debit/credit pair with its subscription row in a
// single transaction.
func (s *GormStore) ApplyCharge(reader, author domain.Profile, sub domain.Subscription) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, p := range []domain.Profile{reader, author} {
			model := profileToModel(p)
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"display_name", "points", "updated_at"}),
			}).Create(&model).Error; err != nil {
				return err
			}
		}
		subModel := subscriptionToModel(sub)
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "book_id"}, {Name: "profile_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "owned_chapters", "bought_at", "updated_at"}),
		}).Create(&subModel).Error
	})
}

// ApplyGrade persists a grading row upsert with the credited profile.
func (s *GormStore) ApplyGrade(profile domain.Profile, record domain.AnswerRecord) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		profileModel := profileToModel(profile)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "points", "updated_at"}),
		}).Create(&profileModel).Error; err != nil {
			return err
		}
		recordModel := answerRecordToModel(record)
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "question_id"}, {Name: "profile_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_correct", "answered_at"}),
		}).Create(&recordModel).Error
	})
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	role := domain.UserRole(m.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         role,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func profileToModel(p domain.Profile) ProfileModel {
	return ProfileModel{
		ID:          p.ID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Points:      p.Points,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func profileFromModel(m ProfileModel) domain.Profile {
	return domain.Profile{
		ID:          m.ID,
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		Points:      m.Points,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:            b.ID,
		AuthorID:      b.AuthorID,
		Title:         b.Title,
		Genre:         b.Genre,
		Description:   b.Description,
		ChapterPrice:  b.ChapterPrice,
		BookPrice:     b.BookPrice,
		IsFinished:    b.IsFinished,
		Status:        string(b.Status),
		StatusComment: b.StatusComment,
		CoverKey:      b.CoverKey,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:            m.ID,
		AuthorID:      m.AuthorID,
		Title:         m.Title,
		Genre:         m.Genre,
		Description:   m.Description,
		ChapterPrice:  m.ChapterPrice,
		BookPrice:     m.BookPrice,
		IsFinished:    m.IsFinished,
		Status:        domain.BookStatus(m.Status),
		StatusComment: m.StatusComment,
		CoverKey:      m.CoverKey,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func chapterToModel(c domain.Chapter) ChapterModel {
	return ChapterModel{
		ID:        c.ID,
		BookID:    c.BookID,
		Name:      c.Name,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

func chapterFromModel(m ChapterModel) domain.Chapter {
	return domain.Chapter{
		ID:        m.ID,
		BookID:    m.BookID,
		Name:      m.Name,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func subscriptionToModel(s domain.Subscription) SubscriptionModel {
	return SubscriptionModel{
		BookID:        s.BookID,
		ProfileID:     s.ProfileID,
		State:         string(s.State),
		OwnedChapters: entitlement.Encode(s.OwnedChapters),
		BoughtAt:      s.BoughtAt,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
}

func subscriptionFromModel(m SubscriptionModel) domain.Subscription {
	return domain.Subscription{
		BookID:        m.BookID,
		ProfileID:     m.ProfileID,
		State:         domain.SubscriptionState(m.State),
		OwnedChapters: entitlement.Decode(m.OwnedChapters),
		BoughtAt:      m.BoughtAt,
	}
}

func questionToModel(q domain.DailyQuestion) DailyQuestionModel {
	return DailyQuestionModel{
		ID:        q.ID,
		Question:  q.Question,
		Points:    q.Points,
		Date:      datatypes.Date(q.Date),
		CreatedAt: time.Now().UTC(),
	}
}

func questionFromModel(m DailyQuestionModel) domain.DailyQuestion {
	return domain.DailyQuestion{
		ID:       m.ID,
		Question: m.Question,
		Points:   m.Points,
		Date:     time.Time(m.Date),
	}
}

func answerFromModel(m AnswerModel) domain.Answer {
	return domain.Answer{
		ID:         m.ID,
		QuestionID: m.QuestionID,
		Content:    m.Content,
		Correct:    m.Correct,
	}
}

func answerRecordToModel(r domain.AnswerRecord) AnswerRecordModel {
	return AnswerRecordModel{
		QuestionID: r.QuestionID,
		ProfileID:  r.ProfileID,
		IsCorrect:  r.IsCorrect,
		AnsweredAt: r.AnsweredAt,
	}
}

func answerRecordFromModel(m AnswerRecordModel) domain.AnswerRecord {
	return domain.AnswerRecord{
		QuestionID: m.QuestionID,
		ProfileID:  m.ProfileID,
		IsCorrect:  m.IsCorrect,
		AnsweredAt: m.AnsweredAt,
	}
}
