package quiz

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
)

// GetQuizForStudent returns the quiz without correctness flags or
// explanations. When the quiz randomizes, the order is a stable shuffle keyed
// by seed, so a student sees the same order on every reload.
func (s *Service) GetQuizForStudent(ctx context.Context, quizID, seed string) (*StudentQuiz, error) {
	q, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return studentView(q, seed), nil
}

func studentView(q *Quiz, seed string) *StudentQuiz {
	h := fnv.New64a()
	_, _ = h.Write([]byte(q.ID + "|" + seed))
	rng := rand.New(rand.NewPCG(h.Sum64(), 0x9e3779b97f4a7c15))

	out := &StudentQuiz{
		ID:               q.ID,
		Title:            q.Title,
		Description:      q.Description,
		PassingScore:     q.PassingScore,
		MaxAttempts:      q.MaxAttempts,
		TimeLimitMinutes: q.TimeLimitMinutes,
		PreventTabSwitch: q.PreventTabSwitch,
		PreventCopyPaste: q.PreventCopyPaste,
		TotalPoints:      q.TotalPoints,
		Questions:        make([]StudentQuestion, 0, len(q.Questions)),
	}
	for _, qq := range q.Questions {
		sq := StudentQuestion{ID: qq.ID, Type: qq.Type, Text: qq.Text, Points: qq.Points,
			Answers: make([]StudentAnswer, 0, len(qq.Answers))}
		for _, a := range qq.Answers {
			sq.Answers = append(sq.Answers, StudentAnswer{ID: a.ID, Text: a.Text})
		}
		if q.RandomizeAnswers {
			rng.Shuffle(len(sq.Answers), func(i, j int) { sq.Answers[i], sq.Answers[j] = sq.Answers[j], sq.Answers[i] })
		}
		out.Questions = append(out.Questions, sq)
	}
	if q.RandomizeQuestions {
		rng.Shuffle(len(out.Questions), func(i, j int) { out.Questions[i], out.Questions[j] = out.Questions[j], out.Questions[i] })
	}
	return out
}
