package imposition

import "fmt"

// Binding selects how sheets of one booklet are paired.
type Binding int

const (
	// BindingMiddle nests and folds the sheets (saddle stitch).
	BindingMiddle Binding = iota
	// BindingEdge stacks sheets that are cut, not folded.
	BindingEdge
)

func (b Binding) String() string {
	switch b {
	case BindingMiddle:
		return "middle"
	case BindingEdge:
		return "edge"
	default:
		return fmt.Sprintf("binding(%d)", int(b))
	}
}

// ParseBinding accepts "middle"/"saddle" and "edge"/"cut".
func ParseBinding(s string) (Binding, error) {
	switch s {
	case "middle", "saddle", "":
		return BindingMiddle, nil
	case "edge", "cut":
		return BindingEdge, nil
	}
	return 0, &ConfigError{Field: "binding", Reason: fmt.Sprintf("unknown binding %q", s)}
}

// Config is the immutable per-run imposition configuration.
type Config struct {
	SheetsPerBooklet int
	Binding          Binding
	// HasCover marks the first and last source pages as the physical cover.
	HasCover bool
	// KeepCover prints the cover with the booklets instead of stripping it.
	// Ignored unless HasCover is set.
	KeepCover bool
}

func (c Config) keepsCover() bool  { return c.HasCover && c.KeepCover }
func (c Config) stripsCover() bool { return c.HasCover && !c.KeepCover }

// Plan is the booklet distribution for one document.
type Plan struct {
	PageCount     int `json:"page_count" yaml:"page_count"`
	AdjustedPages int `json:"adjusted_pages" yaml:"adjusted_pages"`
	PaddedPages   int `json:"padded_pages" yaml:"padded_pages"`

	NominalSheets        int `json:"nominal_sheets" yaml:"nominal_sheets"`
	ExtendedBookletCount int `json:"extended_booklet_count" yaml:"extended_booklet_count"`
	TailPadPages         int `json:"tail_pad_pages" yaml:"tail_pad_pages"`
	BookletCount         int `json:"booklet_count" yaml:"booklet_count"`
}

// SheetsFor returns the sheet count of the booklet with the given 1-based ordinal,
// before the final booklet is clamped to the padded page count.
func (p Plan) SheetsFor(ordinal int) int {
	if ordinal <= p.ExtendedBookletCount {
		return p.NominalSheets + 1
	}
	return p.NominalSheets
}

// GroupKind is the cover situation of a group, resolved once per group.
type GroupKind int

const (
	GroupBody GroupKind = iota
	GroupFirstWithCover
	GroupLastWithCover
	GroupFirstAndLast
)

func (k GroupKind) String() string {
	switch k {
	case GroupBody:
		return "body"
	case GroupFirstWithCover:
		return "first_with_cover"
	case GroupLastWithCover:
		return "last_with_cover"
	case GroupFirstAndLast:
		return "first_and_last"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k GroupKind) hasFrontCover() bool { return k == GroupFirstWithCover || k == GroupFirstAndLast }
func (k GroupKind) hasBackCover() bool  { return k == GroupLastWithCover || k == GroupFirstAndLast }

// Group is one booklet's half-open range [Start, End) in padded index space.
type Group struct {
	Ordinal int       `json:"ordinal" yaml:"ordinal"`
	Start   int       `json:"start" yaml:"start"`
	End     int       `json:"end" yaml:"end"`
	IsFirst bool      `json:"is_first" yaml:"is_first"`
	IsLast  bool      `json:"is_last" yaml:"is_last"`
	Kind    GroupKind `json:"-" yaml:"-"`
	// Slots is the number of logical page slots the booklet prints.
	// It equals End-Start except for a group that carries the kept front cover,
	// whose blank cover reverse is a slot without an index.
	Slots int `json:"slots" yaml:"slots"`
}

// Sheets is the number of physical sheets in the booklet.
func (g Group) Sheets() int { return g.Slots / 4 }

// Size is the length of the index range.
func (g Group) Size() int { return g.End - g.Start }

// Rotation is the quarter turn applied when rendering a page sideways.
type Rotation int

const (
	RotateCW90 Rotation = iota
	RotateCCW90
)

// Opposite returns the other quarter turn.
func (r Rotation) Opposite() Rotation {
	if r == RotateCW90 {
		return RotateCCW90
	}
	return RotateCW90
}

// Degrees returns the clockwise angle.
func (r Rotation) Degrees() int {
	if r == RotateCW90 {
		return 90
	}
	return 270
}

func (r Rotation) String() string {
	if r == RotateCW90 {
		return "cw90"
	}
	return "ccw90"
}

// PageRef is either a real source page or a blank slot.
type PageRef struct {
	index    int
	real     bool
	Rotation Rotation
}

// Page returns a reference to the source page at index.
func Page(index int, rot Rotation) PageRef {
	return PageRef{index: index, real: true, Rotation: rot}
}

// Blank returns a reference to an empty slot.
func Blank(rot Rotation) PageRef {
	return PageRef{Rotation: rot}
}

// IsBlank reports whether nothing is printed in this slot.
func (p PageRef) IsBlank() bool { return !p.real }

// Index returns the source page index and whether the reference is real.
func (p PageRef) Index() (int, bool) { return p.index, p.real }

func (p PageRef) String() string {
	if !p.real {
		return "blank"
	}
	return fmt.Sprintf("p%d/%s", p.index, p.Rotation)
}

// SheetSide is one printable face carrying two logical pages.
type SheetSide struct {
	Step   int
	Low    PageRef
	High   PageRef
	IsBack bool
}
