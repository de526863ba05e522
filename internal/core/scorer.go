package core

import (
	"math"
	"slices"

	"github.com/dkeye/Quiz/internal/domain"
)

// Scorer turns answer times into points using a descending table where
// index i covers answers given within [i, i+1) seconds.
type Scorer struct {
	points []int
}

func NewScorer(points []int) Scorer {
	return Scorer{points: slices.Clone(points)}
}

func (s Scorer) PointsFor(elapsed float64) int {
	if math.IsNaN(elapsed) || elapsed < 0 {
		elapsed = 0
	}
	bucket := math.Floor(elapsed)
	if bucket >= float64(len(s.points)) {
		return 0
	}
	return s.points[int(bucket)]
}

// Rank keeps the correct answers, fastest first with arrival order breaking
// ties, and returns the winner plus one score delta per correct answer.
func (s Scorer) Rank(answers []domain.Answer, correct int) (string, []domain.ScoreEntry) {
	right := make([]domain.Answer, 0, len(answers))
	for _, a := range answers {
		if a.Choice == correct {
			right = append(right, a)
		}
	}
	slices.SortStableFunc(right, func(a, b domain.Answer) int {
		return cmpElapsed(a.Elapsed, b.Elapsed)
	})

	deltas := make([]domain.ScoreEntry, 0, len(right))
	for _, a := range right {
		deltas = append(deltas, domain.ScoreEntry{Username: a.Username, Points: s.PointsFor(a.Elapsed)})
	}
	if len(right) == 0 {
		return "", deltas
	}
	return right[0].Username, deltas
}

// cmpElapsed orders negative and NaN times like zero, matching PointsFor.
func cmpElapsed(a, b float64) int {
	if math.IsNaN(a) || a < 0 {
		a = 0
	}
	if math.IsNaN(b) || b < 0 {
		b = 0
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
