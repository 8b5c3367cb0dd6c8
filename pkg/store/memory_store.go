package store

import (
	"sort"
	"sync"
	"time"

	"bookie/pkg/domain"
)

type subKey struct {
	bookID    int64
	profileID int64
}

type recordKey struct {
	questionID int64
	profileID  int64
}

// MemoryStore keeps everything in-process. It backs the engine tests and
// mirrors GormStore's ordering guarantees, including subscription creation
// order for ListActiveSubscribers.
type MemoryStore struct {
	mu sync.RWMutex

	users     map[string]domain.User
	userEmail map[string]string // email -> user ID

	profiles      map[int64]domain.Profile
	profileByUser map[string]int64
	nextProfileID int64

	books      map[int64]domain.Book
	bookOrder  []int64
	nextBookID int64

	chapters      map[int64]domain.Chapter
	nextChapterID int64

	subs     map[subKey]domain.Subscription
	subOrder []subKey

	questions      map[int64]domain.DailyQuestion
	nextQuestionID int64

	answers      map[int64]domain.Answer
	nextAnswerID int64

	records map[recordKey]domain.AnswerRecord
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]domain.User),
		userEmail:     make(map[string]string),
		profiles:      make(map[int64]domain.Profile),
		profileByUser: make(map[string]int64),
		books:         make(map[int64]domain.Book),
		chapters:      make(map[int64]domain.Chapter),
		subs:          make(map[subKey]domain.Subscription),
		questions:     make(map[int64]domain.DailyQuestion),
		answers:       make(map[int64]domain.Answer),
		records:       make(map[recordKey]domain.AnswerRecord),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.userEmail[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.userEmail[email]
	return ok, nil
}

func (m *MemoryStore) HasAnyUser() (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users) > 0, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.userEmail[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) CreateProfile(p domain.Profile) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextProfileID++
	p.ID = m.nextProfileID
	m.profiles[p.ID] = p
	m.profileByUser[p.UserID] = p.ID
	return p, nil
}

func (m *MemoryStore) GetProfile(id int64) (domain.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	return p, ok, nil
}

func (m *MemoryStore) GetProfileByUser(userID string) (domain.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.profileByUser[userID]; ok {
		p, exists := m.profiles[id]
		return p, exists, nil
	}
	return domain.Profile{}, false, nil
}

func (m *MemoryStore) SaveProfile(p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	return nil
}

func (m *MemoryStore) CreateBook(b domain.Book) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBookID++
	b.ID = m.nextBookID
	m.books[b.ID] = b
	m.bookOrder = append(m.bookOrder, b.ID)
	return b, nil
}

func (m *MemoryStore) GetBook(id int64) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

func (m *MemoryStore) ListBooks(filter BookFilter) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.bookOrder))
	for _, id := range m.bookOrder {
		b, ok := m.books[id]
		if !ok {
			continue
		}
		if filter.Genre != "" && b.Genre != filter.Genre {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.Finished != nil && b.IsFinished != *filter.Finished {
			continue
		}
		if filter.AuthorID != 0 && b.AuthorID != filter.AuthorID {
			continue
		}
		res = append(res, b)
	}
	return res, nil
}

func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[b.ID] = b
	return nil
}

func (m *MemoryStore) DeleteBook(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	filtered := m.bookOrder[:0]
	for _, item := range m.bookOrder {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.bookOrder = filtered
	for cid, c := range m.chapters {
		if c.BookID == id {
			delete(m.chapters, cid)
		}
	}
	kept := m.subOrder[:0]
	for _, key := range m.subOrder {
		if key.bookID == id {
			delete(m.subs, key)
			continue
		}
		kept = append(kept, key)
	}
	m.subOrder = kept
	return nil
}

func (m *MemoryStore) CreateChapter(c domain.Chapter) (domain.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextChapterID++
	c.ID = m.nextChapterID
	m.chapters[c.ID] = c
	return c, nil
}

func (m *MemoryStore) GetChapter(id int64) (domain.Chapter, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chapters[id]
	return c, ok, nil
}

func (m *MemoryStore) ListChapters(bookID int64) ([]domain.Chapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Chapter, 0)
	for _, c := range m.chapters {
		if c.BookID == bookID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (m *MemoryStore) GetSubscription(bookID, profileID int64) (domain.Subscription, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[subKey{bookID, profileID}]
	return s, ok, nil
}

func (m *MemoryStore) SaveSubscription(sub domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveSubscriptionLocked(sub)
	return nil
}

func (m *MemoryStore) saveSubscriptionLocked(sub domain.Subscription) {
	key := subKey{sub.BookID, sub.ProfileID}
	if _, exists := m.subs[key]; !exists {
		m.subOrder = append(m.subOrder, key)
	}
	m.subs[key] = sub
}

func (m *MemoryStore) DeleteSubscription(bookID, profileID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := subKey{bookID, profileID}
	delete(m.subs, key)
	filtered := m.subOrder[:0]
	for _, item := range m.subOrder {
		if item != key {
			filtered = append(filtered, item)
		}
	}
	m.subOrder = filtered
	return nil
}

func (m *MemoryStore) ListActiveSubscribers(bookID int64) ([]domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Profile, 0)
	for _, key := range m.subOrder {
		if key.bookID != bookID {
			continue
		}
		sub, ok := m.subs[key]
		if !ok || sub.State != domain.SubscriptionActive {
			continue
		}
		if p, exists := m.profiles[key.profileID]; exists {
			res = append(res, p)
		}
	}
	return res, nil
}

func (m *MemoryStore) ListSubscriptionsByProfile(profileID int64) ([]domain.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Subscription, 0)
	for _, key := range m.subOrder {
		if key.profileID != profileID {
			continue
		}
		if sub, ok := m.subs[key]; ok {
			res = append(res, sub)
		}
	}
	return res, nil
}

func (m *MemoryStore) CreateQuestion(q domain.DailyQuestion, answers []domain.Answer) (domain.DailyQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextQuestionID++
	q.ID = m.nextQuestionID
	m.questions[q.ID] = q
	for _, a := range answers {
		m.nextAnswerID++
		a.ID = m.nextAnswerID
		a.QuestionID = q.ID
		m.answers[a.ID] = a
	}
	return q, nil
}

func (m *MemoryStore) GetQuestion(id int64) (domain.DailyQuestion, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	return q, ok, nil
}

func (m *MemoryStore) GetQuestionByDate(day time.Time) (domain.DailyQuestion, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	y, mo, d := day.Date()
	for _, q := range m.questions {
		qy, qmo, qd := q.Date.Date()
		if qy == y && qmo == mo && qd == d {
			return q, true, nil
		}
	}
	return domain.DailyQuestion{}, false, nil
}

func (m *MemoryStore) ListQuestions() ([]domain.DailyQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.DailyQuestion, 0, len(m.questions))
	for _, q := range m.questions {
		res = append(res, q)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.After(res[j].Date) })
	return res, nil
}

func (m *MemoryStore) DeleteQuestion(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.questions, id)
	for aid, a := range m.answers {
		if a.QuestionID == id {
			delete(m.answers, aid)
		}
	}
	for key := range m.records {
		if key.questionID == id {
			delete(m.records, key)
		}
	}
	return nil
}

func (m *MemoryStore) GetAnswer(id int64) (domain.Answer, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.answers[id]
	return a, ok, nil
}

func (m *MemoryStore) ListAnswers(questionID int64) ([]domain.Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Answer, 0)
	for _, a := range m.answers {
		if a.QuestionID == questionID {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (m *MemoryStore) GetAnswerRecord(questionID, profileID int64) (domain.AnswerRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[recordKey{questionID, profileID}]
	return r, ok, nil
}

func (m *MemoryStore) LastAnswerRecord(profileID int64) (domain.AnswerRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest domain.AnswerRecord
	found := false
	for key, r := range m.records {
		if key.profileID != profileID {
			continue
		}
		if !found || r.AnsweredAt.After(latest.AnsweredAt) {
			latest = r
			found = true
		}
	}
	return latest, found, nil
}

func (m *MemoryStore) ApplyCharge(reader, author domain.Profile, sub domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[reader.ID] = reader
	m.profiles[author.ID] = author
	m.saveSubscriptionLocked(sub)
	return nil
}

func (m *MemoryStore) ApplyGrade(profile domain.Profile, record domain.AnswerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.ID] = profile
	m.records[recordKey{record.QuestionID, record.ProfileID}] = record
	return nil
}
