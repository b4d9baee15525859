package source

import "testing"

func TestDefaultTiersOrder(t *testing.T) {
	tiers := DefaultTiers()
	if len(tiers) != 2 {
		t.Fatalf("Expected 2 tiers, got %d", len(tiers))
	}
	if tiers[0].Name != "soundcloud" || tiers[1].Name != "youtube" {
		t.Errorf("Unexpected tier order: %s, %s", tiers[0].Name, tiers[1].Name)
	}
	if tiers[0].MinDurationSec <= 0 {
		t.Error("Audio tier must reject implausibly short uploads")
	}
}

func TestBuildQuery(t *testing.T) {
	tier := Tier{Name: "youtube", SearchPrefix: "ytsearch20:"}
	got := BuildQuery(tier, "Tiến Quân Ca")
	want := "ytsearch20:Tiến Quân Ca nhạc cách mạng"
	if got != want {
		t.Errorf("BuildQuery = %q, want %q", got, want)
	}
}
