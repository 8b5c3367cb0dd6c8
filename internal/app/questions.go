package app

import (
	"fmt"
	"strings"
	"time"

	"bookie/pkg/domain"
)

// CreateQuestion stores a daily question with its answer choices. Exactly one
// answer must be flagged correct.
func (a *App) CreateQuestion(q domain.DailyQuestion, answers []domain.Answer) (domain.DailyQuestion, error) {
	if strings.TrimSpace(q.Question) == "" {
		return domain.DailyQuestion{}, fmt.Errorf("question text required")
	}
	if q.Points < 0 {
		return domain.DailyQuestion{}, fmt.Errorf("points must be >= 0")
	}
	if len(answers) < 2 {
		return domain.DailyQuestion{}, fmt.Errorf("at least two answers required")
	}
	correct := 0
	for _, ans := range answers {
		if ans.Correct {
			correct++
		}
	}
	if correct != 1 {
		return domain.DailyQuestion{}, fmt.Errorf("exactly one answer must be correct, got %d", correct)
	}
	if q.Date.IsZero() {
		q.Date = time.Now().UTC()
	}
	created, err := a.store.CreateQuestion(q, answers)
	if err != nil {
		return domain.DailyQuestion{}, fmt.Errorf("create question: %w", err)
	}
	return created, nil
}

// QuestionForDate returns the question scheduled for the given calendar day
// together with its answer choices.
func (a *App) QuestionForDate(day time.Time) (domain.DailyQuestion, []domain.Answer, error) {
	question, ok, err := a.store.GetQuestionByDate(day)
	if err != nil {
		return domain.DailyQuestion{}, nil, fmt.Errorf("load question: %w", err)
	}
	if !ok {
		return domain.DailyQuestion{}, nil, ErrQuestionNotFound
	}
	answers, err := a.store.ListAnswers(question.ID)
	if err != nil {
		return domain.DailyQuestion{}, nil, fmt.Errorf("list answers: %w", err)
	}
	return question, answers, nil
}

// ListQuestions returns all daily questions, newest first.
func (a *App) ListQuestions() ([]domain.DailyQuestion, error) {
	return a.store.ListQuestions()
}

// DeleteQuestion removes a question with its answers and grading rows.
func (a *App) DeleteQuestion(id int64) error {
	_, ok, err := a.store.GetQuestion(id)
	if err != nil {
		return fmt.Errorf("load question: %w", err)
	}
	if !ok {
		return ErrQuestionNotFound
	}
	return a.store.DeleteQuestion(id)
}
