package main

import (
	"encoding/json"
	"testing"
)

func TestDefaultConfigMatchesDefaultRules(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.DB == "" {
		t.Error("default config must carry a database connection string")
	}

	settings := cfg.toGameSettings()
	if settings != defaultSettings() {
		t.Errorf("toGameSettings() = %+v, want %+v", settings, defaultSettings())
	}
	if settings.GhostMode || settings.SoloWinContinues || settings.TimersDisabled {
		t.Error("optional rule variants must default to off")
	}
}

func TestJSONOverlayOnlySetsPresentKeys(t *testing.T) {
	cfg := defaultConfig()
	cfg.GhostMode = true

	raw := []byte(`{"night_seconds": 30, "solo_win_continues": true, "addr": ":9000"}`)
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(raw, &overlay); err != nil {
		t.Fatal(err)
	}
	applyJSONOverlay(&cfg, overlay)

	if cfg.NightSeconds != 30 {
		t.Errorf("night seconds = %d, want 30", cfg.NightSeconds)
	}
	if !cfg.SoloWinContinues {
		t.Error("solo_win_continues from the overlay should be applied")
	}
	if cfg.Addr != ":9000" {
		t.Errorf("addr = %q, want :9000", cfg.Addr)
	}
	// Keys absent from the file must not reset earlier layers.
	if !cfg.GhostMode {
		t.Error("ghost_mode was not in the overlay and must survive")
	}
	if cfg.AccusationSeconds != defaultSettings().AccusationSeconds {
		t.Errorf("accusation seconds = %d, want the default", cfg.AccusationSeconds)
	}
}

func TestLogConfigMapping(t *testing.T) {
	cfg := defaultConfig()
	cfg.LogOutputDir = "/tmp/wlogs"
	cfg.LogWS = true
	cfg.LogDebug = true

	lc := cfg.toLogConfig()
	if lc.OutputDir != "/tmp/wlogs" || !lc.LogWS || !lc.Debug {
		t.Errorf("toLogConfig() = %+v, want ws and debug logging under /tmp/wlogs", lc)
	}
	if lc.LogRequests || lc.LogHTML || lc.LogDB {
		t.Errorf("unset log switches leaked through: %+v", lc)
	}
}
