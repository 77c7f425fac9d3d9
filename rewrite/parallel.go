package rewrite

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// numWorkers bounds how many chunks rewriteParallel splits into.
const numWorkers = 8

// rewriteParallel splits src on safe boundaries and runs fn over each
// chunk with golang.org/x/sync/errgroup, then concatenates deterministically
// in order — the "parallel regex scanning over disjoint ranges, followed by
// deterministic merge" permitted by spec.md §5 for Strip and Run-balance,
// the two passes whose per-chunk result never depends on neighboring
// chunks once split on a safe boundary.
func rewriteParallel(src string, fn func(string) string) string {
	bounds := splitPoints(src, numWorkers)
	if len(bounds) <= 2 {
		return fn(src)
	}
	results := make([]string, len(bounds)-1)
	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < len(bounds)-1; i++ {
		i := i
		lo, hi := bounds[i], bounds[i+1]
		g.Go(func() error {
			results[i] = fn(src[lo:hi])
			return nil
		})
	}
	_ = g.Wait()
	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]byte, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return string(out)
}

// runClass groups characters that can form a multi-character run under
// Strip/Run-balance: +/- are one run family, >/< another, everything else
// stands alone.
func runClass(c byte) int {
	switch c {
	case '+', '-':
		return 0
	case '>', '<':
		return 1
	default:
		return 2
	}
}

// splitPoints returns at most n+1 increasing offsets into src, the first 0
// and the last len(src), each interior bound snapped forward so it never
// falls inside a run of the same class — splitting there would change
// Run-balance's net count for that run.
func splitPoints(src string, n int) []int {
	if n < 1 || len(src) == 0 {
		return []int{0, len(src)}
	}
	chunk := len(src) / n
	if chunk == 0 {
		return []int{0, len(src)}
	}
	bounds := []int{0}
	for i := 1; i < n; i++ {
		t := i * chunk
		for t > 0 && t < len(src) && runClass(src[t-1]) == runClass(src[t]) && runClass(src[t]) != 2 {
			t++
		}
		if t >= len(src) {
			break
		}
		if t > bounds[len(bounds)-1] {
			bounds = append(bounds, t)
		}
	}
	bounds = append(bounds, len(src))
	return bounds
}
