package effect

import (
	"fmt"
	"sort"
)

// CurveKey is one point of a level curve.
type CurveKey struct {
	Level float64
	Value float64
}

// Curve maps a level to a multiplier by linear interpolation between keys.
// Levels outside the keyed range clamp to the nearest end.
type Curve struct {
	Name string
	keys []CurveKey
}

func NewCurve(name string, keys []CurveKey) *Curve {
	ks := append([]CurveKey(nil), keys...)
	sort.Slice(ks, func(i, j int) bool { return ks[i].Level < ks[j].Level })
	return &Curve{Name: name, keys: ks}
}

func (c *Curve) Eval(level float64) float64 {
	n := len(c.keys)
	switch {
	case n == 0:
		return 0
	case level <= c.keys[0].Level:
		return c.keys[0].Value
	case level >= c.keys[n-1].Level:
		return c.keys[n-1].Value
	}
	i := sort.Search(n, func(i int) bool { return c.keys[i].Level >= level })
	lo, hi := c.keys[i-1], c.keys[i]
	t := (level - lo.Level) / (hi.Level - lo.Level)
	return lo.Value + t*(hi.Value-lo.Value)
}

// ScalableFloat is a magnitude that may scale with level: Value alone, or
// Value times Curve(level).
type ScalableFloat struct {
	Value float64
	Curve *Curve
}

func Constant(v float64) ScalableFloat { return ScalableFloat{Value: v} }

func (f ScalableFloat) At(level float64) float64 {
	if f.Curve == nil {
		return f.Value
	}
	return f.Value * f.Curve.Eval(level)
}

func (f ScalableFloat) IsStatic() bool { return f.Curve == nil }

func (f ScalableFloat) IsZero() bool { return f.Value == 0 && f.Curve == nil }

func (f ScalableFloat) String() string {
	if f.Curve == nil {
		return fmt.Sprintf("%g", f.Value)
	}
	return fmt.Sprintf("%g*%s", f.Value, f.Curve.Name)
}
