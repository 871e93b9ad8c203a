package grading

import (
	"errors"
	"testing"
)

func TestGradeExactSet(t *testing.T) {
	g := NewGrader()
	multi := Q{Type: MultipleChoice, Points: 4, CorrectAnswerIDs: []string{"B", "A"}}
	single := Q{Type: SingleChoice, Points: 2, CorrectAnswerIDs: []string{"C"}}
	tf := Q{Type: TrueFalse, Points: 1, CorrectAnswerIDs: []string{"T"}}

	cases := []struct {
		name    string
		q       Q
		sel     []string
		correct bool
		points  float64
	}{
		{"order independent", multi, []string{"A", "B"}, true, 4},
		{"duplicates collapse", multi, []string{"B", "A", "B"}, true, 4},
		{"subset earns nothing", multi, []string{"A"}, false, 0},
		{"superset earns nothing", multi, []string{"A", "B", "C"}, false, 0},
		{"empty selection", multi, nil, false, 0},
		{"single correct", single, []string{"C"}, true, 2},
		{"single wrong", single, []string{"D"}, false, 0},
		{"single with extra", single, []string{"C", "D"}, false, 0},
		{"true false", tf, []string{"T"}, true, 1},
	}
	for _, tc := range cases {
		res, err := g.Grade(tc.q, tc.sel)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if res.Correct != tc.correct || res.PointsEarned != tc.points || res.MaxPoints != tc.q.Points {
			t.Errorf("%s: got %+v", tc.name, res)
		}
	}
}

func TestGradeUnsupported(t *testing.T) {
	_, err := NewGrader().Grade(Q{Type: "ESSAY", Points: 5}, []string{"x"})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]string{"c", "", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v", got)
		}
	}
}
