package combat

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrInvalidDiceSpec = errors.New("dice spec must have count > 0 and sides > 0")
	ErrRollOutOfRange  = errors.New("roll outside the ability's dice range")
)

// Spec describes Count dice of Sides faces, e.g. {Count: 2, Sides: 6} is 2d6.
type Spec struct {
	Count int `json:"num"`
	Sides int `json:"dice"`
}

func (s Spec) Valid() bool { return s.Count > 0 && s.Sides > 0 }

func (s Spec) Min() int { return s.Count }

func (s Spec) Max() int { return s.Count * s.Sides }

func (s Spec) String() string { return fmt.Sprintf("%dd%d", s.Count, s.Sides) }

// ValidateRoll checks that a client-reported total is achievable with s.
func (s Spec) ValidateRoll(value int) error {
	if !s.Valid() {
		return ErrInvalidDiceSpec
	}
	if value < s.Min() || value > s.Max() {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrRollOutOfRange, value, s.Min(), s.Max())
	}
	return nil
}

// Roll rolls s with rng and returns the total. Participants roll locally and
// submit the total with their move.
func Roll(rng *rand.Rand, s Spec) (int, error) {
	if !s.Valid() {
		return 0, ErrInvalidDiceSpec
	}
	total := 0
	for i := 0; i < s.Count; i++ {
		total += rng.Intn(s.Sides) + 1
	}
	return total, nil
}
