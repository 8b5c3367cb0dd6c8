package store

import (
	"testing"
	"time"

	"bookie/pkg/domain"
)

func TestMemoryStoreActiveSubscribersKeepCreationOrder(t *testing.T) {
	s := NewMemoryStore()
	var profiles []domain.Profile
	for _, name := range []string{"first", "second", "third"} {
		p, err := s.CreateProfile(domain.Profile{UserID: name, DisplayName: name, Points: 10})
		if err != nil {
			t.Fatalf("create profile: %v", err)
		}
		profiles = append(profiles, p)
	}
	// Subscribe in reverse creation order to prove list order follows the
	// subscription rows, not the profile ids.
	for i := len(profiles) - 1; i >= 0; i-- {
		err := s.SaveSubscription(domain.Subscription{
			BookID:    7,
			ProfileID: profiles[i].ID,
			State:     domain.SubscriptionActive,
		})
		if err != nil {
			t.Fatalf("save subscription: %v", err)
		}
	}

	subs, err := s.ListActiveSubscribers(7)
	if err != nil {
		t.Fatalf("list active subscribers: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected 3 subscribers, got %d", len(subs))
	}
	if subs[0].DisplayName != "third" || subs[2].DisplayName != "first" {
		t.Fatalf("unexpected order: %q, %q, %q", subs[0].DisplayName, subs[1].DisplayName, subs[2].DisplayName)
	}
}

func TestMemoryStoreActiveSubscribersSkipLapsed(t *testing.T) {
	s := NewMemoryStore()
	p, _ := s.CreateProfile(domain.Profile{UserID: "u1"})
	if err := s.SaveSubscription(domain.Subscription{
		BookID: 1, ProfileID: p.ID, State: domain.SubscriptionLapsed,
	}); err != nil {
		t.Fatalf("save subscription: %v", err)
	}
	subs, err := s.ListActiveSubscribers(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("lapsed subscriber must not be listed, got %d", len(subs))
	}
}

func TestMemoryStoreSubscriptionUpsertKeepsOnePerPair(t *testing.T) {
	s := NewMemoryStore()
	p, _ := s.CreateProfile(domain.Profile{UserID: "u1"})
	for i := 0; i < 3; i++ {
		if err := s.SaveSubscription(domain.Subscription{
			BookID:        1,
			ProfileID:     p.ID,
			State:         domain.SubscriptionActive,
			OwnedChapters: []int64{int64(i)},
		}); err != nil {
			t.Fatalf("save subscription: %v", err)
		}
	}
	subs, err := s.ListSubscriptionsByProfile(p.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected a single row per pair, got %d", len(subs))
	}
	if len(subs[0].OwnedChapters) != 1 || subs[0].OwnedChapters[0] != 2 {
		t.Fatalf("latest save should win, got %v", subs[0].OwnedChapters)
	}
}

func TestMemoryStoreQuestionByDate(t *testing.T) {
	s := NewMemoryStore()
	day := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	q, err := s.CreateQuestion(domain.DailyQuestion{Question: "?", Points: 5, Date: day}, []domain.Answer{
		{Content: "A", Correct: true},
		{Content: "B"},
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	got, ok, err := s.GetQuestionByDate(day.Add(13 * time.Hour))
	if err != nil || !ok {
		t.Fatalf("question for day not found: ok=%v err=%v", ok, err)
	}
	if got.ID != q.ID {
		t.Fatalf("unexpected question id %d", got.ID)
	}
	answers, err := s.ListAnswers(q.ID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 2 || !answers[0].Correct || answers[1].Correct {
		t.Fatalf("unexpected answers: %+v", answers)
	}
}

func TestMemoryStoreLastAnswerRecord(t *testing.T) {
	s := NewMemoryStore()
	p, _ := s.CreateProfile(domain.Profile{UserID: "u1"})
	if _, ok, _ := s.LastAnswerRecord(p.ID); ok {
		t.Fatalf("fresh profile must have no grading rows")
	}
	older := time.Now().UTC().Add(-time.Hour)
	newer := time.Now().UTC()
	_ = s.ApplyGrade(p, domain.AnswerRecord{QuestionID: 1, ProfileID: p.ID, AnsweredAt: older})
	_ = s.ApplyGrade(p, domain.AnswerRecord{QuestionID: 2, ProfileID: p.ID, IsCorrect: true, AnsweredAt: newer})
	rec, ok, err := s.LastAnswerRecord(p.ID)
	if err != nil || !ok {
		t.Fatalf("expected a record: ok=%v err=%v", ok, err)
	}
	if rec.QuestionID != 2 || !rec.IsCorrect {
		t.Fatalf("expected newest record, got %+v", rec)
	}
}

func TestMemoryStoreDeleteQuestionRemovesAnswersAndRecords(t *testing.T) {
	s := NewMemoryStore()
	p, _ := s.CreateProfile(domain.Profile{UserID: "u1"})
	q, _ := s.CreateQuestion(domain.DailyQuestion{Question: "?", Date: time.Now()}, []domain.Answer{{Content: "A", Correct: true}})
	_ = s.ApplyGrade(p, domain.AnswerRecord{QuestionID: q.ID, ProfileID: p.ID, AnsweredAt: time.Now()})

	if err := s.DeleteQuestion(q.ID); err != nil {
		t.Fatalf("delete question: %v", err)
	}
	if _, ok, _ := s.GetQuestion(q.ID); ok {
		t.Fatalf("question should be gone")
	}
	if answers, _ := s.ListAnswers(q.ID); len(answers) != 0 {
		t.Fatalf("answers should be gone")
	}
	if _, ok, _ := s.GetAnswerRecord(q.ID, p.ID); ok {
		t.Fatalf("grading row should be gone")
	}
}
