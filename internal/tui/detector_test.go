package tui

import "testing"

func newTestDetector(env map[string]string, tty bool) *Detector {
	return &Detector{
		isTTY:  func() bool { return tty },
		getenv: func(k string) string { return env[k] },
	}
}

func TestDetector_Detect(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		tty  bool
		want OutputMode
	}{
		{"tty", nil, true, ModeStyled},
		{"pipe", nil, false, ModePlain},
		{"no color", map[string]string{"NO_COLOR": "1"}, true, ModePlain},
		{"dumb term", map[string]string{"TERM": "dumb"}, true, ModePlain},
		{"ci", map[string]string{"CI": "true"}, true, ModePlain},
		{"env json", map[string]string{"ROLECHAIN_OUTPUT": "json"}, true, ModeJSON},
		{"env quiet", map[string]string{"ROLECHAIN_OUTPUT": "quiet"}, false, ModeQuiet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newTestDetector(tt.env, tt.tty).Detect(); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetector_Overrides(t *testing.T) {
	d := newTestDetector(map[string]string{"ROLECHAIN_OUTPUT": "json"}, true).ForceMode(ModeQuiet)
	if got := d.Detect(); got != ModeQuiet {
		t.Errorf("forced Detect() = %v, want quiet", got)
	}

	d = newTestDetector(nil, true).NoColor(true)
	if d.ShouldUseColor() {
		t.Error("NoColor(true) should disable color")
	}
	if got := d.Detect(); got != ModePlain {
		t.Errorf("Detect() = %v, want plain", got)
	}
}

func TestParseOutputMode(t *testing.T) {
	for _, m := range []OutputMode{ModeStyled, ModePlain, ModeJSON, ModeQuiet} {
		got, ok := ParseOutputMode(m.String())
		if !ok || got != m {
			t.Errorf("ParseOutputMode(%q) = %v, %v", m.String(), got, ok)
		}
	}
	if _, ok := ParseOutputMode("fancy"); ok {
		t.Error("ParseOutputMode(fancy) should fail")
	}
}
