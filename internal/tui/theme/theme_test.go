package theme

import "testing"

func TestByNameFallsBack(t *testing.T) {
	if got := ByName("tokyo-night").Name; got != "tokyo-night" {
		t.Errorf("ByName(tokyo-night) = %q", got)
	}
	if got := ByName("nope").Name; got != FlexokiDark.Name {
		t.Errorf("ByName(nope) = %q, want %q", got, FlexokiDark.Name)
	}
}

func TestNextWraps(t *testing.T) {
	last := All[len(All)-1].Name
	if got := Next(last); got != All[0].Name {
		t.Errorf("Next(%q) = %q, want %q", last, got, All[0].Name)
	}
	if got := Next("unknown"); got != All[0].Name {
		t.Errorf("Next(unknown) = %q", got)
	}
}

func TestHeatLevels(t *testing.T) {
	th := FlexokiDark
	if th.Heat(0) != th.Border || th.Heat(-1) != th.Border {
		t.Error("level 0 should use the border color")
	}
	if th.Heat(4) != th.Green || th.Heat(9) != th.Green {
		t.Error("level 4 and above should use green")
	}
}
