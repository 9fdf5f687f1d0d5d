package campusguess

import (
	"fmt"
	"time"
	"unicode/utf16"
)

// DefaultRounds is the number of rounds in a session unless configured.
const DefaultRounds = 5

const (
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223
	lcgModulus    = 1 << 32

	hashModulus = 1_000_000_007
)

// lcg is the Numerical Recipes linear congruential generator. Only the low
// 32 bits of the seed matter, so any int64 seed is accepted.
type lcg struct {
	state uint32
}

func newLCG(seed int64) *lcg {
	return &lcg{state: uint32(seed)}
}

// next advances the generator and returns a value in [0, 1).
func (g *lcg) next() float64 {
	g.state = g.state*lcgMultiplier + lcgIncrement
	return float64(g.state) / lcgModulus
}

// SelectRounds returns count distinct indices in [0, poolSize), taken from a
// Fisher–Yates shuffle of the identity permutation driven by seed. Equal
// seeds always produce equal sequences.
func SelectRounds(seed int64, count, poolSize int) ([]int, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("%w: pool is empty", ErrInvalidSelection)
	}
	if count < 1 || count > poolSize {
		return nil, fmt.Errorf("%w: cannot pick %d of %d locations", ErrInvalidSelection, count, poolSize)
	}

	perm := make([]int, poolSize)
	for i := range perm {
		perm[i] = i
	}

	rng := newLCG(seed)
	for i := poolSize - 1; i > 0; i-- {
		j := int(rng.next() * float64(i+1))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:count:count], nil
}

// HashLobbyToken folds a lobby token into a seed with the polynomial hash
// h = (h*31 + c) mod 1_000_000_007 over its UTF-16 code units, so that every
// client computes the same value. The empty token hashes to 0.
func HashLobbyToken(token string) int64 {
	var h int64
	for _, c := range utf16.Encode([]rune(token)) {
		h = (h*31 + int64(c)) % hashModulus
	}
	return h
}

// SeedFor returns the lobby hash when a token is given, otherwise the
// wall-clock time in milliseconds, which gives a solo player an effectively
// unique sequence.
func SeedFor(lobbyToken string, now time.Time) int64 {
	if lobbyToken != "" {
		return HashLobbyToken(lobbyToken)
	}
	return now.UnixMilli()
}

// NewLobbyToken returns a token in the conventional lobby_<unix ms> form.
func NewLobbyToken(now time.Time) string {
	return fmt.Sprintf("lobby_%d", now.UnixMilli())
}
