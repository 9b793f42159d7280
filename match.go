package nucleus

import (
	"fmt"
	"sort"

	hungarian "github.com/arthurkushman/go-hungarian"
)

// Matcher selects the assignment algorithm used to pair true and predicted objects.
type Matcher int

const (
	// MatcherGreedy repeatedly commits the largest remaining overlap.
	MatcherGreedy Matcher = iota
	// MatcherHungarian solves the exact maximum-overlap assignment.
	MatcherHungarian
)

// String returns the matcher name.
func (mt Matcher) String() string {
	switch mt {
	case MatcherGreedy:
		return "greedy"
	case MatcherHungarian:
		return "hungarian"
	default:
		return fmt.Sprintf("Matcher(%d)", int(mt))
	}
}

// ParseMatcher converts a matcher name back to a Matcher.
func ParseMatcher(s string) (Matcher, error) {
	switch s {
	case "greedy", "":
		return MatcherGreedy, nil
	case "hungarian":
		return MatcherHungarian, nil
	default:
		return 0, fmt.Errorf("unknown matcher %q", s)
	}
}

func (mt Matcher) match(im *IntersectionMatrix) []Match {
	if mt == MatcherHungarian {
		return MatchHungarian(im)
	}
	return MatchGreedy(im)
}

// Match pairs one true object with one predicted object.
type Match struct {
	TrueID       int
	PredID       int
	Intersection int
	Union        int
	IoU          float64
}

// MatchGreedy assigns true objects to predicted objects, largest overlap first.
//
// Ties on overlap are broken by the lower true id, then the lower predicted id.
// A pair is committed only while both its objects are still free, and matching
// ends when no free pair overlaps. Matches are returned in commit order; IoU and
// Union are left for the aggregator.
func MatchGreedy(im *IntersectionMatrix) []Match {
	cells := im.positive()
	sort.Slice(cells, func(a, b int) bool {
		if cells[a].overlap != cells[b].overlap {
			return cells[a].overlap > cells[b].overlap
		}
		if cells[a].trueID != cells[b].trueID {
			return cells[a].trueID < cells[b].trueID
		}
		return cells[a].predID < cells[b].predID
	})

	trueTaken := make([]bool, im.rows)
	predTaken := make([]bool, im.cols)
	var matches []Match
	for _, c := range cells {
		if trueTaken[c.trueID] || predTaken[c.predID] {
			continue
		}
		trueTaken[c.trueID] = true
		predTaken[c.predID] = true
		matches = append(matches, Match{
			TrueID:       c.trueID,
			PredID:       c.predID,
			Intersection: c.overlap,
		})
	}
	return matches
}

// MatchHungarian finds the assignment with the largest total overlap. Pairs the
// solver assigns with zero overlap are dropped, so both objects stay unmatched.
// Matches are ordered by true id.
func MatchHungarian(im *IntersectionMatrix) []Match {
	m, n := im.TrueObjects(), im.PredObjects()
	if m == 0 || n == 0 {
		return nil
	}

	// The solver wants a square matrix; padding rows and columns overlap nothing.
	size := max(m, n)
	weights := make([][]float64, size)
	for i := range weights {
		weights[i] = make([]float64, size)
		if i >= m {
			continue
		}
		for j := 0; j < n; j++ {
			weights[i][j] = float64(im.At(i+1, j+1))
		}
	}

	assignments := hungarian.SolveMax(weights)

	var matches []Match
	predTaken := make([]bool, n)
	for row, cols := range assignments {
		for col := range cols {
			if row >= m || col >= n || predTaken[col] {
				continue
			}
			overlap := im.At(row+1, col+1)
			if overlap <= 0 {
				continue
			}
			predTaken[col] = true
			matches = append(matches, Match{
				TrueID:       row + 1,
				PredID:       col + 1,
				Intersection: overlap,
			})
			break
		}
	}
	sort.Slice(matches, func(a, b int) bool {
		return matches[a].TrueID < matches[b].TrueID
	})
	return matches
}
