package repair

import "testing"

func TestExtractComponent(t *testing.T) {
	tests := []struct {
		name   string
		issues []string
		want   string
	}{
		{"direct match", []string{"chuck detached from body"}, "chuck"},
		{"case insensitive", []string{"CRACKED SCREEN on front"}, "screen"},
		{"second issue matches", []string{"scratches on housing", "battery swollen"}, "battery"},
		{"multi word keyword", []string{"heating element burnt out"}, "heating element"},
		{"no match", []string{"general wear and tear"}, ""},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractComponent(tt.issues); got != tt.want {
				t.Errorf("extractComponent(%v) = %q, want %q", tt.issues, got, tt.want)
			}
		})
	}
}

func TestBuildRepairQuery(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want string
	}{
		{
			"with component",
			Item{Object: "drill", Brand: "Makita", Model: "XFD131", Issues: []string{"chuck detached"}},
			"how to fix Makita XFD131 drill chuck",
		},
		{
			"unknown brand skipped",
			Item{Object: "toaster", Brand: "Unknown", Issues: []string{"lever stuck"}},
			"how to fix toaster lever stuck",
		},
		{
			"not found model skipped",
			Item{Object: "kettle", Brand: "Bosch", Model: "Not Found"},
			"Bosch kettle repair guide",
		},
		{
			"no issues",
			Item{Object: "lamp"},
			"lamp repair guide",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildRepairQuery(tt.item); got != tt.want {
				t.Errorf("BuildRepairQuery = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildPartsQuery(t *testing.T) {
	item := Item{Object: "drill", Brand: "Makita", Issues: []string{"broken chuck"}}
	if got := BuildPartsQuery(item); got != "Makita drill replacement chuck" {
		t.Errorf("BuildPartsQuery = %q", got)
	}

	plain := Item{Object: "fan"}
	if got := BuildPartsQuery(plain); got != "fan replacement parts" {
		t.Errorf("BuildPartsQuery = %q", got)
	}
}

func TestBuildGuideQuery(t *testing.T) {
	item := Item{Object: "espresso machine", Brand: "DeLonghi"}
	want := "DeLonghi espresso machine repair site:ifixit.com"
	if got := BuildGuideQuery(item); got != want {
		t.Errorf("BuildGuideQuery = %q, want %q", got, want)
	}
}
