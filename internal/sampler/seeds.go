package sampler

import "math/rand/v2"

// commonSeeds are substrings that hit many clan names.
var commonSeeds = []string{"the", "pro", "war", "roy", "king", "clan", "legend", "mega", "star"}

const seedAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// minSeedLen is the shortest name the clan search accepts.
const minSeedLen = 3

// maxSeedMisses is how many duplicate draws in a row end generation.
const maxSeedMisses = 10000

// Seeds returns n distinct search strings. Up to n/4 of them come from the
// common list; the rest are random lowercase alphanumerics with a length in
// [minLen, maxLen]. The result is deterministic for a given rng. Fewer than
// n seeds come back when the random space is close to exhausted.
func Seeds(rng *rand.Rand, n, minLen, maxLen int) []string {
	if n <= 0 {
		return nil
	}
	if minLen < minSeedLen {
		minLen = minSeedLen
	}
	if maxLen < minLen {
		maxLen = minLen
	}

	out := make([]string, 0, n)
	seen := make(map[string]bool, n)
	add := func(s string) bool {
		if seen[s] {
			return false
		}
		seen[s] = true
		out = append(out, s)
		return true
	}

	for _, s := range commonSeeds[:min(len(commonSeeds), n/4)] {
		add(s)
	}
	for misses := 0; len(out) < n && misses < maxSeedMisses; {
		l := minLen + rng.IntN(maxLen-minLen+1)
		b := make([]byte, l)
		for i := range b {
			b[i] = seedAlphabet[rng.IntN(len(seedAlphabet))]
		}
		if add(string(b)) {
			misses = 0
		} else {
			misses++
		}
	}
	return out
}
