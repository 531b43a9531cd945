package imposition

import "fmt"

// PagesPerSheet is the number of logical page slots on one physical sheet:
// two halves on each of the two sides.
const PagesPerSheet = 4

// MaxPages bounds the documents the planner accepts.
const MaxPages = 100_000

// PlanBooklets computes how pageCount source pages are distributed over booklets.
// It is a pure function of its inputs.
func PlanBooklets(pageCount int, cfg Config) (Plan, error) {
	if cfg.SheetsPerBooklet <= 0 {
		return Plan{}, &ConfigError{Field: "sheets_per_booklet", Reason: "must be positive"}
	}
	if pageCount <= 0 {
		return Plan{}, &ConfigError{Field: "page_count", Reason: "document has no pages"}
	}
	if pageCount > MaxPages {
		return Plan{}, &ConfigError{Field: "page_count", Reason: fmt.Sprintf("%d pages exceeds the limit of %d", pageCount, MaxPages)}
	}

	adjusted := pageCount
	switch {
	case cfg.keepsCover():
		if pageCount < 2 {
			return Plan{}, &ConfigError{Field: "has_cover", Reason: "a cover needs a front and a back page"}
		}
		// blank reverse faces of the front and back cover
		adjusted += 2
	case cfg.stripsCover():
		if pageCount <= 2 {
			return Plan{}, &ConfigError{Field: "keep_cover", Reason: "stripping the cover leaves no body pages"}
		}
		adjusted -= 2
	}

	padded := (adjusted + PagesPerSheet - 1) / PagesPerSheet * PagesPerSheet
	p := Plan{
		PageCount:     pageCount,
		AdjustedPages: adjusted,
		PaddedPages:   padded,
		TailPadPages:  padded - adjusted,
	}

	pagesPerBooklet := cfg.SheetsPerBooklet * PagesPerSheet
	whole := padded / pagesPerBooklet
	rest := padded % pagesPerBooklet

	switch {
	case rest/PagesPerSheet <= whole:
		// hand the leftover sheets to the leading booklets, one each
		p.NominalSheets = cfg.SheetsPerBooklet
		p.ExtendedBookletCount = rest / PagesPerSheet
		p.BookletCount = whole
	case rest*4 < pagesPerBooklet*3:
		// trailing booklet under 3/4 of the target: one more, slightly thinner booklet
		count := whole + 1
		sheets := padded / PagesPerSheet
		p.NominalSheets = sheets / count
		p.ExtendedBookletCount = sheets % count
		p.BookletCount = count
	default:
		// trailing booklet is close enough to the target; keep it short
		p.NominalSheets = cfg.SheetsPerBooklet
		p.BookletCount = whole + 1
	}
	return p, nil
}
