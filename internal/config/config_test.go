package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(cfg.Voices) != 7 {
		t.Fatalf("expected 7 default voices, got %d", len(cfg.Voices))
	}
}

func TestParseFillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("seed: 42\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Seed != 42 {
		t.Fatalf("seed not applied: %d", cfg.Seed)
	}
	if cfg.SampleRate != 48000 || len(cfg.Voices) != 7 {
		t.Fatalf("defaults not filled: %+v", cfg)
	}
}

func TestParseCustomVoices(t *testing.T) {
	src := `
voices:
  - name: low
    pitch: 220
    period: 11.5
  - name: high
    pitch: 880
    period: 13.25
`
	cfg, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(cfg.Voices))
	}
	if cfg.Voices[0].Name != "low" || cfg.Voices[0].Period != 11.5 {
		t.Fatalf("unexpected first voice: %+v", cfg.Voices[0])
	}
}

func TestParseRejectsBadVoice(t *testing.T) {
	if _, err := Parse([]byte("voices:\n  - name: bad\n    pitch: 440\n    period: -1\n")); err == nil {
		t.Fatalf("expected error for negative period")
	}
}

func TestValidateRejectsCadenceInversion(t *testing.T) {
	cfg := Default()
	cfg.TickInterval = 0.6
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when tickInterval >= lookahead")
	}
}
