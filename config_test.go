package bmalloc

import "testing"

import s "github.com/bnclabs/gosettings"

func TestNewConfigDefaults(t *testing.T) {
	cfg := newConfig(nil)
	if cfg.smallMax != defaultSmallMax {
		t.Fatalf("smallMax = %v, want %v", cfg.smallMax, defaultSmallMax)
	}
	if cfg.largeMax != defaultLargeMax {
		t.Fatalf("largeMax = %v, want %v", cfg.largeMax, defaultLargeMax)
	}
	if !cfg.env.isBmallocEnabled() {
		t.Fatal("expected bmalloc enabled by default")
	}
}

func TestNewConfigOverride(t *testing.T) {
	cfg := newConfig(s.Settings{"smallmax": int64(2048), "bmalloc.enabled": false})
	if cfg.smallMax != 2048 {
		t.Fatalf("smallMax = %v, want 2048", cfg.smallMax)
	}
	if cfg.env.isBmallocEnabled() {
		t.Fatal("expected bmalloc disabled")
	}
}

func TestNewConfigRejectsOversizedLargeMax(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic when largemax exceeds half of chunksize")
		}
	}()
	newConfig(s.Settings{"largemax": int64(4 * 1024 * 1024), "chunksize": int64(2 * 1024 * 1024)})
}
