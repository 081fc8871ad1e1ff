// internal/sampling/sampling.go
// Package sampling draws repeatable random subsets and permutations of an
// evidence pool. Every function takes an explicit *rand.Rand so that two
// runs seeded identically replay the exact same draw sequence; nothing in
// this package touches global random state.
package sampling

import (
	"fmt"
	"math"
	"math/rand"
)

// enumerationCap bounds how many permutations the exhaustive enumerator is
// willing to materialize. Above this, only rejection sampling is available
// and callers must keep n far below the factorial total.
const enumerationCap = 50_000

// Subsets draws n subsets of size k from pool, each sampled uniformly
// without replacement. Subsets across draws may repeat; elements within a
// subset never do. k == 0 yields n empty subsets.
func Subsets[T any](pool []T, k, n int, rng *rand.Rand) ([][]T, error) {
	if k < 0 {
		return nil, fmt.Errorf("subset size k (%d) must be non-negative", k)
	}
	if k > len(pool) {
		return nil, fmt.Errorf("subset size k (%d) exceeds pool size (%d)", k, len(pool))
	}

	subsets := make([][]T, n)
	for i := range subsets {
		if k == 0 {
			subsets[i] = []T{}
			continue
		}
		subset := make([]T, k)
		for j, idx := range rng.Perm(len(pool))[:k] {
			subset[j] = pool[idx]
		}
		subsets[i] = subset
	}
	return subsets, nil
}

// Permutations returns up to n orderings of items, pairwise distinct in
// element sequence. Distinctness is judged on element content via key, not
// on slice or pointer identity. When n covers every possible ordering the
// full set is enumerated deterministically instead of sampled; the
// enumeration path also takes over just below that boundary, where
// rejection sampling degrades into a long stutter of duplicate draws.
func Permutations[T any](items []T, n int, rng *rand.Rand, key func(T) string) [][]T {
	if len(items) == 0 {
		return [][]T{{}}
	}

	total := factorial(len(items))

	if total <= enumerationCap {
		all := enumerate(items)
		if n >= total {
			return all
		}
		// Close to exhaustion, rejection sampling thrashes on repeats.
		// Drawing without replacement from the enumeration stays cheap.
		if n*2 >= total {
			picked := make([][]T, n)
			for i, idx := range rng.Perm(total)[:n] {
				picked[i] = all[idx]
			}
			return picked
		}
	}

	perms := make([][]T, 0, n)
	seen := make(map[string]struct{}, n)
	for len(perms) < n {
		perm := make([]T, len(items))
		copy(perm, items)
		rng.Shuffle(len(perm), func(i, j int) {
			perm[i], perm[j] = perm[j], perm[i]
		})

		k := permKey(perm, key)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		perms = append(perms, perm)
	}
	return perms
}

// permKey builds the canonical content key for one ordering.
func permKey[T any](perm []T, key func(T) string) string {
	out := ""
	for _, item := range perm {
		out += key(item) + "\x1e"
	}
	return out
}

// enumerate lists every ordering of items in a deterministic index order
// (lexicographic over positions, via recursive selection).
func enumerate[T any](items []T) [][]T {
	var out [][]T
	idx := make([]int, 0, len(items))
	used := make([]bool, len(items))

	var walk func()
	walk = func() {
		if len(idx) == len(items) {
			perm := make([]T, len(items))
			for i, j := range idx {
				perm[i] = items[j]
			}
			out = append(out, perm)
			return
		}
		for j := range items {
			if used[j] {
				continue
			}
			used[j] = true
			idx = append(idx, j)
			walk()
			idx = idx[:len(idx)-1]
			used[j] = false
		}
	}
	walk()
	return out
}

// factorial returns n! clamped to MaxInt to avoid overflow for large n;
// anything past the clamp is far beyond enumerationCap anyway.
func factorial(n int) int {
	total := 1
	for i := 2; i <= n; i++ {
		if total > math.MaxInt/i {
			return math.MaxInt
		}
		total *= i
	}
	return total
}
