package creature

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Creature is the managed record. ID is assigned by the store on create and
// never changes afterwards; Level and Power only change through the
// bestiary mutation operations.
type Creature struct {
	ID    int32  `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Level int32  `json:"level"`
	Power int32  `json:"power"`
}

// Normalize trims surrounding whitespace from Name and Type and folds both
// to Unicode NFC so the same type typed on different clients compares equal.
func (c Creature) Normalize() Creature {
	c.Name = norm.NFC.String(strings.TrimSpace(c.Name))
	c.Type = NormalizeType(c.Type)
	return c
}

// NormalizeType applies the same folding Normalize uses for Type.
func NormalizeType(t string) string {
	return norm.NFC.String(strings.TrimSpace(t))
}

// Validate reports the first invalid field of c.
func (c Creature) Validate() error {
	switch {
	case c.Name == "":
		return &ValidationError{Field: "name", Reason: "is required"}
	case c.Type == "":
		return &ValidationError{Field: "type", Reason: "is required"}
	case c.Level < 0:
		return &ValidationError{Field: "level", Reason: "must not be negative"}
	case c.Power < 0:
		return &ValidationError{Field: "power", Reason: "must not be negative"}
	}
	return nil
}

// AddStat returns base+delta for the named stat, or a ValidationError when
// the sum leaves the range a stored stat may hold (0 to math.MaxInt32).
func AddStat(field string, base, delta int32) (int32, error) {
	sum := int64(base) + int64(delta)
	switch {
	case sum > math.MaxInt32:
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("%d%+d overflows the maximum of %d", base, delta, math.MaxInt32)}
	case sum < 0:
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("%d%+d would be negative", base, delta)}
	}
	return int32(sum), nil
}
