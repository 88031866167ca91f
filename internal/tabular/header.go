package tabular

import (
	"regexp"
	"strings"
)

var spaceRE = regexp.MustCompile(`\s+`)

func norm(s string) string {
	return spaceRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// detectHeader scores up to scanRows rows and returns the index of the best
// candidate header row, or -1 when no row matches any keyword.
// A row's score is 10 per keyword appearing as a substring of any cell, plus
// the count of distinct non-empty cells as a tie-breaking bonus.
func detectHeader(rows [][]string, scanRows int, keywords []string) int {
	best, bestScore := -1, 0
	limit := len(rows)
	if scanRows < limit {
		limit = scanRows
	}

	for i := 0; i < limit; i++ {
		score := scoreHeaderRow(rows[i], keywords)
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	// Require at least one keyword hit; a row of bare values never qualifies.
	if bestScore < 10 {
		return -1
	}
	return best
}

func scoreHeaderRow(cells []string, keywords []string) int {
	joined := make([]string, 0, len(cells))
	distinct := map[string]struct{}{}
	for _, c := range cells {
		n := norm(c)
		if n == "" {
			continue
		}
		joined = append(joined, n)
		distinct[n] = struct{}{}
	}

	score := 0
	for _, kw := range keywords {
		for _, cell := range joined {
			if strings.Contains(cell, kw) {
				score += 10
				break
			}
		}
	}
	return score + len(distinct)
}

// retainColumns drops columns whose header is empty or carries a synthetic
// "unnamed" marker, returning the retained header and the source indices to
// keep. Every data row must be re-indexed through the returned index set so
// later columns never shift against the header.
func retainColumns(header []string) ([]string, []int) {
	var kept []string
	var keep []int
	for i, h := range header {
		n := norm(h)
		if n == "" || strings.HasPrefix(n, "unnamed") {
			continue
		}
		kept = append(kept, strings.TrimSpace(h))
		keep = append(keep, i)
	}
	return kept, keep
}

// reindex projects a raw row onto the retained column set. Short rows pad
// with empty cells rather than erroring.
func reindex(row []string, keep []int) []string {
	out := make([]string, len(keep))
	for j, src := range keep {
		if src < len(row) {
			out[j] = strings.TrimSpace(row[src])
		}
	}
	return out
}

// phoneColumns returns the retained-column indices whose header suggests a
// phone number. Cells in these columns are coerced to plain decimal strings
// before any other processing.
func phoneColumns(header []string, hints []string) []int {
	var cols []int
	for i, h := range header {
		n := norm(h)
		for _, hint := range hints {
			if strings.Contains(n, hint) {
				cols = append(cols, i)
				break
			}
		}
	}
	return cols
}
