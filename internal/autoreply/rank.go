package autoreply

import "strconv"

// RankStrings returns 1-based rank labels for n sorted rows. Consecutive rows
// i-1 and i belong to the same tie set when tied(i-1, i) holds. Every member
// of a tie set of two or more rows is labelled "T<k>", where k is the
// position of the set's first row; other rows get plain "<k>".
func RankStrings(n int, tied func(i, j int) bool) []string {
	out := make([]string, n)
	for start := 0; start < n; {
		end := start + 1
		for end < n && tied(end-1, end) {
			end++
		}
		label := strconv.Itoa(start + 1)
		if end-start > 1 {
			label = "T" + label
		}
		for i := start; i < end; i++ {
			out[i] = label
		}
		start = end
	}
	return out
}
