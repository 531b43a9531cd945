package imposition

// GroupSummary is a group as reported to users.
type GroupSummary struct {
	Group  `yaml:",inline"`
	Kind   string `json:"kind" yaml:"kind"`
	Sheets int    `json:"sheets" yaml:"sheets"`
	// Blanks is the number of slots that print no source page.
	Blanks int `json:"blanks" yaml:"blanks"`
}

// Description is the full layout of a document without rendering anything.
type Description struct {
	Binding string         `json:"binding" yaml:"binding"`
	Plan    Plan           `json:"plan" yaml:"plan"`
	Groups  []GroupSummary `json:"groups" yaml:"groups"`
}

// Describe plans pageCount pages and walks every sheet side to count blanks.
func Describe(pageCount int, cfg Config) (Description, error) {
	plan, err := PlanBooklets(pageCount, cfg)
	if err != nil {
		return Description{}, err
	}
	groups, err := Groups(plan, cfg)
	if err != nil {
		return Description{}, err
	}
	d := Description{Binding: cfg.Binding.String(), Plan: plan, Groups: make([]GroupSummary, 0, len(groups))}
	for _, g := range groups {
		gs := GroupSummary{Group: g, Kind: g.Kind.String(), Sheets: g.Sheets()}
		for _, side := range Sides(g, cfg, pageCount) {
			if side.Low.IsBlank() {
				gs.Blanks++
			}
			if side.High.IsBlank() {
				gs.Blanks++
			}
		}
		d.Groups = append(d.Groups, gs)
	}
	return d, nil
}
