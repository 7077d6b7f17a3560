package types

import "testing"

func TestParseFitMode(t *testing.T) {
	tests := []struct {
		in   string
		want FitMode
		ok   bool
	}{
		{"cover", FitCover, true},
		{" Contain ", FitContain, true},
		{"stretch", "stretch", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseFitMode(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseFitMode(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPresetOrder(t *testing.T) {
	if !Preset("medium").Valid() || Preset("turbo").Valid() {
		t.Error("Valid() mismatch")
	}
	if Preset("ultrafast").Rank() != 0 || Preset("veryslow").Rank() != len(Presets)-1 {
		t.Error("presets out of order")
	}
	if Preset("fast").Rank() >= Preset("slow").Rank() {
		t.Error("fast should rank before slow")
	}
	if Preset("turbo").Rank() != -1 {
		t.Error("unknown preset should rank -1")
	}
}
