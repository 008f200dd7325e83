package layering

import "testing"

func TestParseLevelRoundTrip(t *testing.T) {
	for _, level := range []Level{LevelAmbient, LevelBaseline, LevelDescriptor, LevelConfigFile, LevelNormalized, LevelIntegration} {
		if got := ParseLevel(level.String()); got != level {
			t.Fatalf("expected %v, got %v", level, got)
		}
	}
	if ParseLevel("CONFIG_FILE") != LevelConfigFile {
		t.Fatalf("expected upper-case names to parse")
	}
	if ParseLevel("nope") != LevelUnknown {
		t.Fatalf("expected unknown level")
	}
}
