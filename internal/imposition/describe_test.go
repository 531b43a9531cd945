package imposition

import "testing"

func TestDescribe(t *testing.T) {
	tests := []struct {
		name   string
		pages  int
		cfg    Config
		groups int
		blanks int
	}{
		{"exact fit", 40, Config{SheetsPerBooklet: 10}, 1, 0},
		{"tail padding", 38, Config{SheetsPerBooklet: 10}, 1, 2},
		{"kept cover", 202, Config{SheetsPerBooklet: 10, HasCover: true, KeepCover: true}, 5, 2},
		{"stripped cover", 42, Config{SheetsPerBooklet: 10, Binding: BindingEdge, HasCover: true}, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Describe(tt.pages, tt.cfg)
			if err != nil {
				t.Fatalf("Describe(): %v", err)
			}
			if len(d.Groups) != tt.groups || d.Binding != tt.cfg.Binding.String() {
				t.Fatalf("description = %+v", d)
			}
			blanks, slots := 0, 0
			for _, g := range d.Groups {
				blanks += g.Blanks
				slots += g.Slots
				if g.Sheets*PagesPerSheet != g.Slots || g.Kind == "" {
					t.Errorf("group %+v", g)
				}
			}
			if blanks != tt.blanks || slots != d.Plan.PaddedPages {
				t.Errorf("blanks %d slots %d, want %d and %d", blanks, slots, tt.blanks, d.Plan.PaddedPages)
			}
		})
	}
}

func TestDescribeRejectsBadConfig(t *testing.T) {
	if _, err := Describe(10, Config{}); err == nil {
		t.Error("zero sheets accepted")
	}
}
