package campusguess

import "math"

// MaxScore is awarded for a guess at zero distance.
const MaxScore = 5000

// ScoreCurve is the distance-decay curve. Guesses at or beyond MaxDistance
// miles score zero; closer guesses fall off as (1-d/MaxDistance)^Exponent.
type ScoreCurve struct {
	MaxDistance float64
	Exponent    float64
}

// DefaultScoreCurve is the 1.5 mi / 2.5 curve. The earlier 1.8 / 2.0 pair is
// equally valid; deployments choose through configuration.
var DefaultScoreCurve = ScoreCurve{MaxDistance: 1.5, Exponent: 2.5}

// Score returns the points for a guess distanceMiles away from the target.
func (c ScoreCurve) Score(distanceMiles float64) int {
	return Score(distanceMiles, c.MaxDistance, c.Exponent)
}

// Score returns floor(5000 * (1 - d/maxDistance)^exponent), or 0 once d
// reaches maxDistance.
func Score(d, maxDistance, exponent float64) int {
	if d >= maxDistance {
		return 0
	}
	return int(math.Floor(MaxScore * math.Pow(1-d/maxDistance, exponent)))
}
