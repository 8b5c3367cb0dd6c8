package server

import (
	"net/http"
	"time"

	"bookie/pkg/domain"
)

type createQuestionRequest struct {
	Question string  `json:"question"`
	Points   float64 `json:"points"`
	Date     string  `json:"date"`
	Answers  []struct {
		Content string `json:"content"`
		Correct bool   `json:"correct"`
	} `json:"answers"`
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request, user domain.User, profile domain.Profile) {
	switch r.Method {
	case http.MethodGet:
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		questions, err := s.app.ListQuestions()
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": questions, "count": len(questions)})
	case http.MethodPost:
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		var req createQuestionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		var day time.Time
		if req.Date != "" {
			parsed, err := time.Parse("2006-01-02", req.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
				return
			}
			day = parsed
		}
		answers := make([]domain.Answer, 0, len(req.Answers))
		for _, a := range req.Answers {
			answers = append(answers, domain.Answer{Content: a.Content, Correct: a.Correct})
		}
		question, err := s.app.CreateQuestion(domain.DailyQuestion{
			Question: req.Question,
			Points:   req.Points,
			Date:     day,
		}, answers)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, question)
	default:
		methodNotAllowed(w)
	}
}

type answerRequest struct {
	AnswerID int64 `json:"answerId"`
}

func (s *Server) handleQuestionSubtree(w http.ResponseWriter, r *http.Request, user domain.User, profile domain.Profile) {
	segments := pathSegments(r, "/questions/")
	if len(segments) == 0 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if segments[0] == "today" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		question, answers, err := s.app.QuestionForDate(time.Now().UTC())
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"question": question,
			"answers":  publicAnswers(answers),
		})
		return
	}

	questionID, ok := parseID(segments[0])
	if !ok {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}

	switch {
	case len(segments) == 1 && r.Method == http.MethodDelete:
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if err := s.app.DeleteQuestion(questionID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case len(segments) == 2 && segments[1] == "answer":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req answerRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		result, err := s.app.AnswerDailyQuestion(questionID, req.AnswerID, profile.ID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// publicAnswers strips the correct flag so the question can be served to
// players without giving the answer away.
func publicAnswers(answers []domain.Answer) []map[string]any {
	out := make([]map[string]any, 0, len(answers))
	for _, a := range answers {
		out = append(out, map[string]any{"id": a.ID, "content": a.Content})
	}
	return out
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request, user domain.User, profile domain.Profile) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	subs, err := s.app.ListSubscriptions(profile.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": subs, "count": len(subs)})
}

func (s *Server) handleLastAnswered(w http.ResponseWriter, r *http.Request, user domain.User, profile domain.Profile) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	when, ok, err := s.app.LastAnswered(profile.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"answered": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answered": true, "lastAnsweredAt": when})
}
