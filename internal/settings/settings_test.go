package settings

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "settings.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.BackendURL != DefaultBackendURL {
		t.Errorf("BackendURL = %q, want default", s.BackendURL)
	}
	if s.RefreshIntervalSeconds != DefaultRefreshIntervalSeconds {
		t.Errorf("RefreshIntervalSeconds = %d, want %d", s.RefreshIntervalSeconds, DefaultRefreshIntervalSeconds)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	in := Settings{
		BackendURL:             "https://shop.anvil.app/",
		RefreshIntervalSeconds: 45,
		SMSGatewayURL:          "http://localhost:9090/send",
	}
	if err := Save(path, in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestLoadZeroIntervalFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := Save(path, Settings{BackendURL: "https://x.com/"}); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.RefreshIntervalSeconds != DefaultRefreshIntervalSeconds {
		t.Errorf("RefreshIntervalSeconds = %d, want default", s.RefreshIntervalSeconds)
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"30", 30},
		{"1", 1},
		{"90", 90},
		{"", DefaultRefreshIntervalSeconds},
		{"abc", DefaultRefreshIntervalSeconds},
		{"0", DefaultRefreshIntervalSeconds},
		{"-5", DefaultRefreshIntervalSeconds},
		{"2.5", DefaultRefreshIntervalSeconds},
	}
	for _, tt := range tests {
		if got := ParseInterval(tt.input); got != tt.want {
			t.Errorf("ParseInterval(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
