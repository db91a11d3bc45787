package playlist

import "math/rand/v2"

// Shuffle returns a uniformly random permutation of tracks using the
// Fisher-Yates algorithm. The input is not modified. A nil r uses the global
// source.
func Shuffle(tracks []Track, r *rand.Rand) []Track {
	out := make([]Track, len(tracks))
	copy(out, tracks)

	intN := rand.IntN
	if r != nil {
		intN = r.IntN
	}
	for i := len(out) - 1; i > 0; i-- {
		j := intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
