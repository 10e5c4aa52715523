package feedback

import (
	"fmt"
	"strings"
)

// Mode selects which distance mappings the sequencer drives each tick.
// Pan is always driven; Mode covers the distance channels.
type Mode uint8

const (
	// ModeVolume maps distance to loudness of the pulse.
	ModeVolume Mode = 1 << iota
	// ModeTempo maps distance to the pulse repetition rate.
	ModeTempo
	// ModePitch maps distance to playback pitch.
	ModePitch

	// ModeVolumeTempo drives loudness and rate together.
	ModeVolumeTempo = ModeVolume | ModeTempo
)

var modeNames = []struct {
	mode Mode
	name string
}{
	{ModeVolume, "volume"},
	{ModeTempo, "tempo"},
	{ModePitch, "pitch"},
}

// Has reports whether every channel in other is enabled in m.
func (m Mode) Has(other Mode) bool {
	return other != 0 && m&other == other
}

// String renders the mode as channel names joined by "+", e.g. "volume+tempo".
func (m Mode) String() string {
	var parts []string
	for _, mn := range modeNames {
		if m.Has(mn.mode) {
			parts = append(parts, mn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// ParseMode parses a "+"-separated list of channel names.
func ParseMode(s string) (Mode, error) {
	var m Mode
	for _, part := range strings.Split(s, "+") {
		part = strings.TrimSpace(strings.ToLower(part))
		found := false
		for _, mn := range modeNames {
			if mn.name == part {
				m |= mn.mode
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown feedback mode %q", part)
		}
	}
	return m, nil
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
