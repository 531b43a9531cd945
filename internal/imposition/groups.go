package imposition

import (
	"fmt"
	"iter"
)

// GroupSequencer yields the booklet groups of a plan in order.
// It is single-pass: once exhausted it cannot be restarted.
type GroupSequencer struct {
	plan     Plan
	cfg      Config
	next     int
	indexEnd int
	ordinal  int
}

// NewGroupSequencer prepares the group walk for plan.
func NewGroupSequencer(plan Plan, cfg Config) (*GroupSequencer, error) {
	if plan.NominalSheets <= 0 || plan.PaddedPages <= 0 {
		return nil, &ConfigError{Field: "plan", Reason: "empty booklet plan"}
	}
	start := 0
	if cfg.stripsCover() {
		// page 0 is the stripped front cover
		start = 1
	}
	end := start + plan.PaddedPages
	if cfg.keepsCover() {
		// the blank beside the front cover has no index
		end--
	}
	return &GroupSequencer{plan: plan, cfg: cfg, next: start, indexEnd: end}, nil
}

// More reports whether another group is available.
func (s *GroupSequencer) More() bool { return s.next < s.indexEnd }

// Next returns the following group. Calling it after More returned false
// is a precondition violation.
func (s *GroupSequencer) Next() (Group, error) {
	if !s.More() {
		return Group{}, &PreconditionError{
			Op:     "GroupSequencer.Next",
			Reason: fmt.Sprintf("all %d groups already produced", s.ordinal),
		}
	}
	s.ordinal++
	g := Group{
		Ordinal: s.ordinal,
		Start:   s.next,
		IsFirst: s.ordinal == 1,
		Slots:   s.plan.SheetsFor(s.ordinal) * PagesPerSheet,
	}
	span := g.Slots
	if g.IsFirst && s.cfg.keepsCover() {
		span--
	}
	g.End = g.Start + span
	if g.End >= s.indexEnd {
		g.Slots -= g.End - s.indexEnd
		g.End = s.indexEnd
		g.IsLast = true
	}
	g.Kind = resolveKind(g, s.cfg)
	s.next = g.End
	return g, nil
}

// All adapts the sequencer to a range-over-func iterator. Stopping early is safe.
func (s *GroupSequencer) All() iter.Seq[Group] {
	return func(yield func(Group) bool) {
		for s.More() {
			g, err := s.Next()
			if err != nil || !yield(g) {
				return
			}
		}
	}
}

func resolveKind(g Group, cfg Config) GroupKind {
	if !cfg.keepsCover() {
		return GroupBody
	}
	switch {
	case g.IsFirst && g.IsLast:
		return GroupFirstAndLast
	case g.IsFirst:
		return GroupFirstWithCover
	case g.IsLast:
		return GroupLastWithCover
	}
	return GroupBody
}

// Groups materializes every group of the plan.
func Groups(plan Plan, cfg Config) ([]Group, error) {
	seq, err := NewGroupSequencer(plan, cfg)
	if err != nil {
		return nil, err
	}
	var out []Group
	for g := range seq.All() {
		out = append(out, g)
	}
	return out, nil
}
