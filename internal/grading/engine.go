// Package grading scores a submitted answer selection against a question's
// answer key.
package grading

import (
	"errors"
	"fmt"
	"sort"
)

const (
	SingleChoice   = "SINGLE_CHOICE"
	MultipleChoice = "MULTIPLE_CHOICE"
	TrueFalse      = "TRUE_FALSE"
)

var ErrUnsupportedType = errors.New("grading: unsupported question type")

// Q is the view of a question needed for grading.
type Q struct {
	Type             string
	Points           float64
	CorrectAnswerIDs []string
}

type Result struct {
	Correct      bool
	PointsEarned float64
	MaxPoints    float64
}

// Strategy grades a single question.
type Strategy interface {
	Grade(q Q, selected []string) Result
}

// Grader routes by question type to the matching Strategy.
type Grader struct {
	strategies map[string]Strategy
}

func NewGrader() *Grader {
	return &Grader{
		strategies: map[string]Strategy{
			SingleChoice:   singleChoice{},
			TrueFalse:      singleChoice{},
			MultipleChoice: multipleChoice{},
		},
	}
}

// Supported reports whether typ has a strategy.
func (g *Grader) Supported(typ string) bool {
	_, ok := g.strategies[typ]
	return ok
}

func (g *Grader) Grade(q Q, selected []string) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.Points}, fmt.Errorf("%w: %q", ErrUnsupportedType, q.Type)
	}
	return s.Grade(q, selected), nil
}

// singleChoice needs exactly one selection, equal to the key.
type singleChoice struct{}

func (singleChoice) Grade(q Q, selected []string) Result {
	sel := Normalize(selected)
	if len(sel) != 1 {
		return Result{MaxPoints: q.Points}
	}
	return score(q, SetEqual(sel, q.CorrectAnswerIDs))
}

// multipleChoice is all-or-nothing: the selection must equal the key exactly,
// subsets and supersets earn zero.
type multipleChoice struct{}

func (multipleChoice) Grade(q Q, selected []string) Result {
	return score(q, SetEqual(selected, q.CorrectAnswerIDs))
}

func score(q Q, correct bool) Result {
	r := Result{Correct: correct, MaxPoints: q.Points}
	if correct {
		r.PointsEarned = q.Points
	}
	return r
}

// Normalize drops blanks and duplicates and sorts the ids.
func Normalize(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SetEqual compares two id lists ignoring order and duplicates. Two empty
// lists are not considered a match.
func SetEqual(a, b []string) bool {
	na, nb := Normalize(a), Normalize(b)
	if len(na) == 0 || len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}
