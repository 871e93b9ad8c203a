package quiz

import (
	"encoding/json"
	"time"
)

const (
	StatusInProgress  = "IN_PROGRESS"
	StatusCompleted   = "COMPLETED"
	StatusTimeExpired = "TIME_EXPIRED"
)

// Violation kinds recorded during an attempt.
const (
	ViolationTabSwitch = "TAB_SWITCH"
	ViolationCopyPaste = "COPY_PASTE"
)

type Answer struct {
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
	OrderIndex int    `json:"orderIndex"`
}

type Question struct {
	ID          string   `json:"id"`
	QuizID      string   `json:"quizId"`
	Type        string   `json:"type"` // SINGLE_CHOICE | MULTIPLE_CHOICE | TRUE_FALSE
	Text        string   `json:"text"`
	Explanation string   `json:"explanation,omitempty"`
	Points      float64  `json:"points"`
	OrderIndex  int      `json:"orderIndex"`
	Answers     []Answer `json:"answers"`
}

func (q Question) CorrectAnswerIDs() []string {
	var ids []string
	for _, a := range q.Answers {
		if a.IsCorrect {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func (q Question) hasAnswer(id string) bool {
	for _, a := range q.Answers {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Settings are the author-controlled fields of a quiz. They are copied
// verbatim when a quiz is instantiated from a template.
type Settings struct {
	Title               string  `json:"title"`
	Description         string  `json:"description"`
	ChapterID           *string `json:"chapterId,omitempty"`
	ContentBlockID      *string `json:"contentBlockId,omitempty"`
	CourseVersionID     *string `json:"courseVersionId,omitempty"`
	IsTemplate          bool    `json:"isTemplate"`
	PassingScore        float64 `json:"passingScore"`
	MaxAttempts         *int    `json:"maxAttempts,omitempty"`
	TimeLimitMinutes    *int    `json:"timeLimitMinutes,omitempty"`
	PreventTabSwitch    bool    `json:"preventTabSwitch"`
	PreventCopyPaste    bool    `json:"preventCopyPaste"`
	RandomizeQuestions  bool    `json:"randomizeQuestions"`
	RandomizeAnswers    bool    `json:"randomizeAnswers"`
	ShowCorrectAnswers  bool    `json:"showCorrectAnswers"`
	GenerateCertificate bool    `json:"generateCertificate"`
}

type Quiz struct {
	ID string `json:"id"`
	Settings
	SourceTemplateID *string    `json:"sourceTemplateId,omitempty"`
	TotalPoints      float64    `json:"totalPoints"`
	Questions        []Question `json:"questions,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// deadline is when an attempt started at startedAt runs out of time, or the
// zero time for untimed quizzes.
func (q *Quiz) deadline(startedAt time.Time) time.Time {
	if q.TimeLimitMinutes == nil || *q.TimeLimitMinutes <= 0 {
		return time.Time{}
	}
	return startedAt.Add(time.Duration(*q.TimeLimitMinutes) * time.Minute)
}

type Violation struct {
	Type   string    `json:"type"`
	At     time.Time `json:"at"`
	Detail string    `json:"detail,omitempty"`
}

type Attempt struct {
	ID                string          `json:"id"`
	QuizID            string          `json:"quizId"`
	UserID            string          `json:"userId"`
	AttemptNumber     int             `json:"attemptNumber"`
	Status            string          `json:"status"`
	Score             float64         `json:"score"`
	Passed            bool            `json:"passed"`
	TotalPoints       float64         `json:"totalPoints"`
	QuestionsAnswered int             `json:"questionsAnswered"`
	StartedAt         time.Time       `json:"startedAt"`
	CompletedAt       *time.Time      `json:"completedAt,omitempty"`
	LastSavedAt       *time.Time      `json:"lastSavedAt,omitempty"`
	TimeSpentSec      *int            `json:"timeSpentSec,omitempty"`
	TimeRemainingSec  *int            `json:"timeRemainingSec,omitempty"`
	TabSwitchCount    int             `json:"tabSwitchCount"`
	CopyPasteCount    int             `json:"copyPasteCount"`
	Violations        []Violation     `json:"violations"`
	AutoSaveData      json.RawMessage `json:"autoSaveData,omitempty"`
	ReviewQuestionIDs []string        `json:"reviewQuestionIds"`
}

type Response struct {
	ID                string    `json:"id"`
	AttemptID         string    `json:"attemptId"`
	QuestionID        string    `json:"questionId"`
	SelectedAnswerIDs []string  `json:"selectedAnswerIds"`
	IsCorrect         bool      `json:"isCorrect"`
	PointsEarned      float64   `json:"pointsEarned"`
	TimeSpentSec      int       `json:"timeSpentSec"`
	AnsweredAt        time.Time `json:"answeredAt"`
}

// DailyAnalytics is one (quiz, UTC day) bucket, rebuilt from that day's
// finished attempts every time one of them finishes.
type DailyAnalytics struct {
	QuizID            string    `json:"quizId"`
	Day               string    `json:"day"`
	TotalAttempts     int       `json:"totalAttempts"`
	CompletedAttempts int       `json:"completedAttempts"`
	AverageScore      float64   `json:"averageScore"`
	PassRate          float64   `json:"passRate"`
	AverageTimeSec    float64   `json:"averageTimeSec"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Student-facing views carry no correctness flags.

type StudentAnswer struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type StudentQuestion struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Points  float64         `json:"points"`
	Answers []StudentAnswer `json:"answers"`
}

type StudentQuiz struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	PassingScore     float64           `json:"passingScore"`
	MaxAttempts      *int              `json:"maxAttempts,omitempty"`
	TimeLimitMinutes *int              `json:"timeLimitMinutes,omitempty"`
	PreventTabSwitch bool              `json:"preventTabSwitch"`
	PreventCopyPaste bool              `json:"preventCopyPaste"`
	TotalPoints      float64           `json:"totalPoints"`
	Questions        []StudentQuestion `json:"questions"`
}

// QuestionReview is shown after an attempt finishes. Correct answers and the
// explanation are filled only when the quiz shows correct answers.
type QuestionReview struct {
	QuestionID        string   `json:"questionId"`
	Text              string   `json:"text"`
	Points            float64  `json:"points"`
	SelectedAnswerIDs []string `json:"selectedAnswerIds"`
	IsCorrect         bool     `json:"isCorrect"`
	PointsEarned      float64  `json:"pointsEarned"`
	CorrectAnswerIDs  []string `json:"correctAnswerIds,omitempty"`
	Explanation       string   `json:"explanation,omitempty"`
}

type Result struct {
	Attempt   *Attempt         `json:"attempt"`
	Responses []Response       `json:"responses"`
	Review    []QuestionReview `json:"review,omitempty"`
}
