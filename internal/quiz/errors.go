package quiz

import "errors"

var (
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrMaxAttemptsReached = errors.New("maximum attempts reached")
	ErrNotInProgress      = errors.New("attempt is not in progress")
	ErrInvalidQuiz        = errors.New("invalid quiz")
	ErrInvalidQuestion    = errors.New("invalid question")
	ErrInvalidAnswer      = errors.New("answer does not belong to question")
	ErrInvalidViolation   = errors.New("unknown violation type")

	errAttemptConflict = errors.New("concurrent attempt start")
)
