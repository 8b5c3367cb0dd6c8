package app

import (
	"fmt"
	"time"

	"bookie/pkg/domain"
)

// AnswerResult reports the grading outcome of one trivia submission.
type AnswerResult struct {
	CorrectContent string `json:"correctContent"`
	WasCorrect     bool   `json:"wasCorrect"`
}

// AnswerDailyQuestion grades a profile's submission to a daily question. The
// grading row is upserted, so at most one exists per (question, profile).
// Points are credited whenever the submitted answer is correct, including on
// resubmission of an already-correct answer.
func (a *App) AnswerDailyQuestion(questionID, answerID, profileID int64) (AnswerResult, error) {
	question, ok, err := a.store.GetQuestion(questionID)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("load question: %w", err)
	}
	if !ok {
		return AnswerResult{}, ErrQuestionNotFound
	}
	submitted, ok, err := a.store.GetAnswer(answerID)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("load answer: %w", err)
	}
	if !ok || submitted.QuestionID != questionID {
		return AnswerResult{}, ErrAnswerNotFound
	}
	profile, ok, err := a.store.GetProfile(profileID)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("load profile: %w", err)
	}
	if !ok {
		return AnswerResult{}, ErrProfileNotFound
	}

	answers, err := a.store.ListAnswers(questionID)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("list answers: %w", err)
	}
	var correct domain.Answer
	for _, ans := range answers {
		if ans.Correct {
			correct = ans
			break
		}
	}
	if correct.ID == 0 {
		return AnswerResult{}, ErrAnswerNotFound
	}

	wasCorrect := submitted.ID == correct.ID
	record := domain.AnswerRecord{
		QuestionID: questionID,
		ProfileID:  profileID,
		IsCorrect:  wasCorrect,
		AnsweredAt: time.Now().UTC(),
	}
	if wasCorrect {
		profile.Points += question.Points
		profile.UpdatedAt = record.AnsweredAt
	}
	if err := a.store.ApplyGrade(profile, record); err != nil {
		return AnswerResult{}, fmt.Errorf("apply grade: %w", err)
	}
	return AnswerResult{CorrectContent: correct.Content, WasCorrect: wasCorrect}, nil
}

// LastAnswered returns when the profile last answered any daily question,
// or false if it never has.
func (a *App) LastAnswered(profileID int64) (time.Time, bool, error) {
	record, ok, err := a.store.LastAnswerRecord(profileID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load last answer: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	return record.AnsweredAt, true, nil
}
