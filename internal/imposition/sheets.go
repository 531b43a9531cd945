package imposition

import (
	"fmt"
	"iter"
)

// SheetSequencer yields the sheet-sides of one group.
//
// States are GROUP_ACTIVE while step < steps and GROUP_DONE afterwards. Every
// side is a function of the group and the step ordinal only.
type SheetSequencer struct {
	group     Group
	binding   Binding
	pageCount int
	strip     bool
	keep      bool
	step      int
	steps     int
}

// NewSheetSequencer prepares the sheet-side walk of group g for a document of
// pageCount source pages.
func NewSheetSequencer(g Group, cfg Config, pageCount int) *SheetSequencer {
	return &SheetSequencer{
		group:     g,
		binding:   cfg.Binding,
		pageCount: pageCount,
		strip:     cfg.stripsCover(),
		keep:      cfg.keepsCover(),
		steps:     g.Slots / 2,
	}
}

// More reports whether the group is still active.
func (s *SheetSequencer) More() bool { return s.step < s.steps }

// Next returns the next sheet-side. Calling it once the group is done is a
// precondition violation.
func (s *SheetSequencer) Next() (SheetSide, error) {
	if !s.More() {
		return SheetSide{}, &PreconditionError{
			Op:     "SheetSequencer.Next",
			Reason: fmt.Sprintf("group %d is done after %d sides", s.group.Ordinal, s.steps),
		}
	}
	side := s.side(s.step)
	s.step++
	return side, nil
}

// All adapts the sequencer to a range-over-func iterator.
func (s *SheetSequencer) All() iter.Seq[SheetSide] {
	return func(yield func(SheetSide) bool) {
		for s.More() {
			side, err := s.Next()
			if err != nil || !yield(side) {
				return
			}
		}
	}
}

// Sides materializes every sheet-side of g.
func Sides(g Group, cfg Config, pageCount int) []SheetSide {
	seq := NewSheetSequencer(g, cfg, pageCount)
	out := make([]SheetSide, 0, seq.steps)
	for side := range seq.All() {
		out = append(out, side)
	}
	return out
}

func (s *SheetSequencer) side(step int) SheetSide {
	back := step%2 == 1
	lowRot, highRot := s.rotations(back)
	g := s.group

	if step == 0 && g.Kind.hasFrontCover() {
		return SheetSide{
			Step:   0,
			Low:    Blank(lowRot),
			High:   s.resolve(g.Start, highRot),
			IsBack: false,
		}
	}

	low := g.Start + step
	var high int
	switch {
	case s.binding == BindingEdge:
		high = g.Start + (g.End-g.Start)/2 + step
	case g.Kind.hasFrontCover():
		// index Start went out on the cover face
		high = g.End - step
	default:
		high = g.End - 1 - step
	}
	return SheetSide{
		Step:   step,
		Low:    s.resolve(low, lowRot),
		High:   s.resolve(high, highRot),
		IsBack: back,
	}
}

// rotations returns the quarter turns of the low and high slot. Back faces
// turn the opposite way of front faces; edge binding also turns the high
// slot against the low one.
func (s *SheetSequencer) rotations(back bool) (Rotation, Rotation) {
	low := RotateCW90
	if back {
		low = low.Opposite()
	}
	high := low
	if s.binding == BindingEdge {
		high = low.Opposite()
	}
	return low, high
}

func (s *SheetSequencer) resolve(index int, rot Rotation) PageRef {
	n := s.pageCount
	switch {
	case s.strip:
		if index >= 1 && index <= n-2 {
			return Page(index, rot)
		}
	case s.keep:
		// body pages keep their index; the back cover sits on the last index
		// of the last group and everything between is blank
		if index <= n-2 {
			return Page(index, rot)
		}
		if s.group.Kind.hasBackCover() && index == s.group.End-1 {
			return Page(n-1, rot)
		}
	default:
		if index < n {
			return Page(index, rot)
		}
	}
	return Blank(rot)
}
