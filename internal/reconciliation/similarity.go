package reconciliation

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// Ratio is the normalized indel similarity 2*LCS/(len(a)+len(b)) over runes
func Ratio(a, b string) float64 {
	return runeRatio([]rune(a), []rune(b))
}

func runeRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return 2 * float64(edlib.LCS(string(a), string(b))) / float64(total)
}

// TokenSortRatio compares the whitespace tokens of both strings in sorted order
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// PartialRatio slides the shorter string over the longer one and keeps the
// best window Ratio.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		if len(ra) == len(rb) {
			return 1
		}
		return 0
	}
	short, long := ra, rb
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == len(long) {
		return runeRatio(short, long)
	}

	best := 0.0
	for start := 0; start+len(short) <= len(long); start++ {
		r := runeRatio(short, long[start:start+len(short)])
		if r > best {
			best = r
			if best == 1 {
				break
			}
		}
	}
	return best
}

// Similarity is max(TokenSortRatio, PartialRatio), in [0,1]
func Similarity(a, b string) float64 {
	ts := TokenSortRatio(a, b)
	pr := PartialRatio(a, b)
	if pr > ts {
		return pr
	}
	return ts
}

// TeamPairScore scores two team pairs regardless of home/away order.
// Names are compared as given; callers normalize first.
func TeamPairScore(a1, a2, b1, b2 string) float64 {
	straight := (Similarity(a1, b1) + Similarity(a2, b2)) / 2
	swapped := (Similarity(a1, b2) + Similarity(a2, b1)) / 2
	if swapped > straight {
		return swapped
	}
	return straight
}
