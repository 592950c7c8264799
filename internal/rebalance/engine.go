package rebalance

import (
	"errors"
	"fmt"
)

// Edge-buffer defaults in basis points of range width. Manual inspection uses
// the wider buffer; the automated heartbeat only reacts closer to the edge.
const (
	DefaultEdgeBps   = 1500
	HeartbeatEdgeBps = 500
	bpsDenominator   = 10000
)

var (
	ErrInvalidRange   = errors.New("rebalance: range width must be positive")
	ErrInvalidSpacing = errors.New("rebalance: tick spacing must be positive")
	ErrInvalidEdgeBps = errors.New("rebalance: edge buffer must be within [0, 10000] bps")
)

// State is the per-evaluation classification. Nothing is persisted between
// evaluations.
type State int

const (
	Healthy State = iota
	NearEdge
	OutOfRange
)

func (s State) String() string {
	switch s {
	case Healthy:
		return "HEALTHY"
	case NearEdge:
		return "NEAR_EDGE"
	case OutOfRange:
		return "OUT_OF_RANGE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Decision is the outcome of one rebalance evaluation.
type Decision struct {
	State           State
	ShouldRebalance bool
	Width           int64
	LowerHeadroom   int64
	UpperHeadroom   int64
	MinHeadroom     int64
	EdgeBuffer      int64
}

// Range is a half-open tick interval [Lower, Upper).
type Range struct {
	Lower int64
	Upper int64
}

func (r Range) Width() int64 { return r.Upper - r.Lower }

// Evaluate classifies the current tick against [lower, upper). An empty or
// inverted range is a caller error, not a chain condition.
func Evaluate(currentTick, lower, upper int64, edgeBps int64) (Decision, error) {
	width := upper - lower
	if width <= 0 {
		return Decision{}, fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, lower, upper)
	}
	if edgeBps < 0 || edgeBps > bpsDenominator {
		return Decision{}, fmt.Errorf("%w: %d", ErrInvalidEdgeBps, edgeBps)
	}
	d := Decision{
		Width:         width,
		LowerHeadroom: currentTick - lower,
		UpperHeadroom: upper - currentTick,
		EdgeBuffer:    width * edgeBps / bpsDenominator,
	}
	d.MinHeadroom = d.LowerHeadroom
	if d.UpperHeadroom < d.MinHeadroom {
		d.MinHeadroom = d.UpperHeadroom
	}
	switch {
	case currentTick < lower || currentTick >= upper:
		d.State = OutOfRange
	case d.MinHeadroom <= d.EdgeBuffer:
		d.State = NearEdge
	default:
		d.State = Healthy
	}
	d.ShouldRebalance = d.State != Healthy
	return d, nil
}

// Integer division helpers that behave on negative ticks.

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}

// roundToSpacing snaps t to the nearest multiple of s, halves away from the
// floor lattice.
func roundToSpacing(t, s int64) int64 {
	return floorDiv(2*t+s, 2*s) * s
}

// SuggestRange centers the old width on the current tick. Both bounds stay
// spacing-aligned and the new width is never below the old width rounded up
// to a whole number of spacings.
func SuggestRange(currentTick, lower, upper, spacing int64) (Range, error) {
	if spacing <= 0 {
		return Range{}, fmt.Errorf("%w: %d", ErrInvalidSpacing, spacing)
	}
	width := upper - lower
	if width <= 0 {
		return Range{}, fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, lower, upper)
	}
	center := roundToSpacing(currentTick, spacing)
	newLower := floorDiv(center-width/2, spacing) * spacing
	newUpper := newLower + ceilDiv(width, spacing)*spacing
	if newUpper <= newLower {
		newUpper = newLower + spacing
	}
	return Range{Lower: newLower, Upper: newUpper}, nil
}

// WidenedTarget grows the old width by the requested bump rounded up to a
// whole number of spacings. Non-positive bumps leave the width unchanged.
func WidenedTarget(oldWidth, bumpTicks, spacing int64) int64 {
	if bumpTicks <= 0 || spacing <= 0 {
		return oldWidth
	}
	return oldWidth + ceilDiv(bumpTicks, spacing)*spacing
}

// SuggestRebalance runs the evaluation and, only when a rebalance triggers,
// suggests a centered range widened by bumpTicks. Each automated rebalance
// widens instead of re-minting the same width, so oscillation near a fixed
// boundary causes less churn; manual re-narrowing resets the baseline.
func SuggestRebalance(currentTick, lower, upper, spacing, edgeBps, bumpTicks int64) (Decision, *Range, error) {
	d, err := Evaluate(currentTick, lower, upper, edgeBps)
	if err != nil {
		return Decision{}, nil, err
	}
	if !d.ShouldRebalance {
		return d, nil, nil
	}
	target := WidenedTarget(d.Width, bumpTicks, spacing)
	r, err := SuggestRange(currentTick, lower, lower+target, spacing)
	if err != nil {
		return Decision{}, nil, err
	}
	return d, &r, nil
}
