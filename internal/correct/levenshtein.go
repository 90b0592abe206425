package correct

// Distance computes the Levenshtein distance between a and b with
// per-operation costs: turning a into b by inserting a character costs
// insertCost, deleting one costs deleteCost, and substituting one costs
// substituteCost. Strings are compared rune by rune so multi-byte
// characters count as single edits.
func Distance(a, b string, insertCost, deleteCost, substituteCost int) int {
	ra := []rune(a)
	rb := []rune(b)

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j * insertCost
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i * deleteCost
		for j := 1; j <= len(rb); j++ {
			sub := prev[j-1]
			if ra[i-1] != rb[j-1] {
				sub += substituteCost
			}
			cur[j] = min(sub, prev[j]+deleteCost, cur[j-1]+insertCost)
		}
		prev, cur = cur, prev
	}

	return prev[len(rb)]
}
