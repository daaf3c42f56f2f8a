/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package grabthemic

import (
	"math/rand/v2"
)

// Rand is the randomness source used for word selection.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

// SelectWord picks a uniformly random index in [0, wordCount) that is not in
// used, and returns it along with a new used set that includes it. used is
// never modified. Once used covers every index, the cycle starts over from an
// empty set, so the previous word may come up again immediately.
//
// It returns -1 and an empty set when wordCount is not positive.
func SelectWord(rng Rand, wordCount int, used map[int]struct{}) (int, map[int]struct{}) {
	if wordCount <= 0 {
		return -1, map[int]struct{}{}
	}

	next := inRange(used, wordCount)
	if len(next) >= wordCount {
		clear(next)
	}

	var index int
	for {
		index = rng.IntN(wordCount)
		if _, taken := next[index]; !taken {
			break
		}
	}

	next[index] = struct{}{}

	return index, next
}

func inRange(used map[int]struct{}, wordCount int) map[int]struct{} {
	out := make(map[int]struct{}, wordCount)
	for i := range used {
		if i >= 0 && i < wordCount {
			out[i] = struct{}{}
		}
	}
	return out
}
