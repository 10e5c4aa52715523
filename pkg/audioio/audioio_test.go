package audioio

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/pion/rtp"
	"go.uber.org/goleak"

	"github.com/teslashibe/rockguide/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"none skips transport checks", func(c *Config) { c.Backend = BackendNone; c.Addr = "" }, false},
		{"rtp default", func(c *Config) { c.Backend = BackendRTP }, false},
		{"unknown backend", func(c *Config) { c.Backend = "alsa" }, true},
		{"rtp bad addr", func(c *Config) { c.Backend = BackendRTP; c.Addr = "nope" }, true},
		{"rtp zero rate", func(c *Config) { c.Backend = BackendRTP; c.SampleRate = 0 }, true},
		{"rtp oversized frame", func(c *Config) { c.Backend = BackendRTP; c.SampleRate = 48000 }, true},
		{"rtp tone above nyquist", func(c *Config) { c.Backend = BackendRTP; c.ToneFrequency = 9000 }, true},
		{"rtp payload type", func(c *Config) { c.Backend = BackendRTP; c.PayloadType = 200 }, true},
		{"rtp zero tone", func(c *Config) { c.Backend = BackendRTP; c.ToneDuration = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_FrameSize(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.FrameSamples(); got != 320 {
		t.Errorf("FrameSamples() = %d, want 320", got)
	}
	if got := cfg.FrameBytes(); got != 1280 {
		t.Errorf("FrameBytes() = %d, want 1280", got)
	}
}

func TestBeep(t *testing.T) {
	samples := Beep(880, 120*time.Millisecond, 16000)
	if len(samples) != 1920 {
		t.Fatalf("Expected 1920 samples, got %d", len(samples))
	}
	if samples[0] != 0 {
		t.Errorf("Expected silent first sample, got %d", samples[0])
	}
	if samples[len(samples)-1] != 0 {
		t.Errorf("Expected silent last sample, got %d", samples[len(samples)-1])
	}
	if rms := CalculateRMS(samples); rms < 0.1 {
		t.Errorf("Beep too quiet: rms %f", rms)
	}

	if got := Beep(880, 0, 16000); len(got) != 0 {
		t.Errorf("Expected empty beep, got %d samples", len(got))
	}
}

func TestRepitch(t *testing.T) {
	samples := Beep(440, 100*time.Millisecond, 16000)

	if got := Repitch(samples, 2, 16000); len(got) != len(samples)/2 {
		t.Errorf("Octave up: expected %d samples, got %d", len(samples)/2, len(got))
	}
	if got := Repitch(samples, 0.5, 16000); len(got) != len(samples)*2 {
		t.Errorf("Octave down: expected %d samples, got %d", len(samples)*2, len(got))
	}
	if got := Repitch(samples, 1, 16000); len(got) != len(samples) {
		t.Errorf("Unity pitch changed length to %d", len(got))
	}
	if got := Repitch(samples, 0, 16000); len(got) != len(samples) {
		t.Errorf("Invalid pitch changed length to %d", len(got))
	}
}

func TestResample(t *testing.T) {
	samples := make([]int16, 960)
	for i := range samples {
		samples[i] = int16(i)
	}

	if got := Resample(samples, 48000, 24000); len(got) != 480 {
		t.Errorf("Expected 480 samples, got %d", len(got))
	}
	if got := Resample(samples[:320], 16000, 24000); len(got) != 480 {
		t.Errorf("Expected 480 samples, got %d", len(got))
	}
	if got := Resample(nil, 24000, 48000); len(got) != 0 {
		t.Errorf("Expected empty result for nil input")
	}
}

func TestPanStereo(t *testing.T) {
	mono := []int16{1000, -1000}

	tests := []struct {
		name        string
		volume, pan float64
		left, right int16
	}{
		{"center", 1, 0, 1000, 1000},
		{"hard left", 1, -1, 1000, 0},
		{"hard right", 1, 1, 0, 1000},
		{"half right", 1, 0.5, 500, 1000},
		{"half volume", 0.5, 0, 500, 500},
		{"clamped", 2, -3, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PanStereo(mono, tt.volume, tt.pan)
			if len(got) != 4 {
				t.Fatalf("Expected 4 samples, got %d", len(got))
			}
			if got[0] != tt.left || got[1] != tt.right {
				t.Errorf("PanStereo = (%d, %d), want (%d, %d)", got[0], got[1], tt.left, tt.right)
			}
			if got[2] != -tt.left || got[3] != -tt.right {
				t.Errorf("second frame = (%d, %d), want (%d, %d)", got[2], got[3], -tt.left, -tt.right)
			}
		})
	}
}

func TestL16(t *testing.T) {
	data := SamplesToL16([]int16{0x0102, -2})
	want := []byte{0x01, 0x02, 0xff, 0xfe}
	for i := range want {
		if data[i] != want[i] {
			t.Fatalf("byte %d: expected 0x%02x, got 0x%02x", i, want[i], data[i])
		}
	}
	back := L16ToSamples(data)
	if back[0] != 0x0102 || back[1] != -2 {
		t.Errorf("L16ToSamples = %v", back)
	}
}

func TestCalculateRMS(t *testing.T) {
	if rms := CalculateRMS(nil); rms != 0 {
		t.Errorf("Expected 0 for empty input, got %f", rms)
	}
	if rms := CalculateRMS([]int16{0, 0, 0}); rms != 0 {
		t.Errorf("Expected 0 for silence, got %f", rms)
	}
	if rms := CalculateRMS([]int16{32767, -32767}); rms < 0.99 {
		t.Errorf("Expected ~1 for full scale, got %f", rms)
	}
}

func TestMockDevice_RecordsCommands(t *testing.T) {
	now := time.Unix(0, 0)
	m := NewMockDevice(DefaultConfig(), log.Nop(),
		WithClipDuration(100*time.Millisecond),
		WithMockClock(func() time.Time { return now }),
	)

	m.SetVolume(0.5)
	m.SetPan(-1)
	m.SetPitch(1.5)
	m.SetVolume(3)

	if m.IsPlaying() {
		t.Fatal("Expected idle device before Play")
	}
	m.Play()
	if !m.IsPlaying() {
		t.Fatal("Expected playing after Play")
	}

	now = now.Add(150 * time.Millisecond)
	if m.IsPlaying() {
		t.Error("Expected clip to have ended")
	}

	cmds := m.Commands()
	want := []Command{
		{Kind: CmdVolume, Value: 0.5},
		{Kind: CmdPan, Value: -1},
		{Kind: CmdPitch, Value: 1.5},
		{Kind: CmdVolume, Value: 1},
		{Kind: CmdPlay},
	}
	if len(cmds) != len(want) {
		t.Fatalf("Expected %d commands, got %v", len(want), cmds)
	}
	for i := range want {
		if cmds[i] != want[i] {
			t.Errorf("command %d: expected %v, got %v", i, want[i], cmds[i])
		}
	}

	stats := m.Stats()
	if stats.Plays != 1 || stats.Volume != 1 || stats.Pan != -1 || stats.Pitch != 1.5 {
		t.Errorf("unexpected stats %+v", stats)
	}

	m.Reset()
	if len(m.Commands()) != 0 {
		t.Error("Expected Reset to clear commands")
	}
	if m.Plays() != 1 {
		t.Errorf("Reset should keep play count, got %d", m.Plays())
	}
}

func TestMockDevice_PlayRestartsClip(t *testing.T) {
	now := time.Unix(0, 0)
	m := NewMockDevice(DefaultConfig(), log.Nop(),
		WithClipDuration(100*time.Millisecond),
		WithMockClock(func() time.Time { return now }),
	)

	m.Play()
	now = now.Add(80 * time.Millisecond)
	m.Play()
	now = now.Add(80 * time.Millisecond)
	if !m.IsPlaying() {
		t.Error("Expected restarted clip to still be playing")
	}
}

func TestNew(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendNone
	dev, err := New(cfg, log.Nop())
	if err != nil {
		t.Fatalf("New(none) error: %v", err)
	}
	if dev != nil {
		t.Errorf("Expected nil device for none backend, got %T", dev)
	}

	cfg.Backend = BackendMock
	dev, err = New(cfg, log.Nop())
	if err != nil {
		t.Fatalf("New(mock) error: %v", err)
	}
	if _, ok := dev.(*MockDevice); !ok {
		t.Errorf("Expected *MockDevice, got %T", dev)
	}

	cfg.Backend = "pulse"
	if _, err := New(cfg, log.Nop()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestNew_NilLoggerUsesPackageLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	dev, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New(mock) error: %v", err)
	}
	m, ok := dev.(*MockDevice)
	if !ok {
		t.Fatalf("Expected *MockDevice, got %T", dev)
	}
	if m.logger != log.L() {
		t.Error("Expected a nil logger to fall back to the package logger")
	}

	if direct := NewMockDevice(cfg, nil); direct.logger != log.L() {
		t.Error("Expected NewMockDevice to fall back to the package logger")
	}
}

func TestRTPDevice_StreamsCue(t *testing.T) {
	ln, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := DefaultConfig()
	cfg.Backend = BackendRTP
	cfg.Addr = ln.LocalAddr().String()

	dev, err := New(cfg, log.Nop())
	if err != nil {
		t.Fatalf("New(rtp) error: %v", err)
	}
	d := dev.(*RTPDevice)
	defer d.Close()

	d.SetVolume(1)
	d.SetPan(1)
	d.Play()
	if !d.IsPlaying() {
		t.Fatal("Expected playing right after Play")
	}

	// 120ms cue in 20ms frames
	const wantPackets = 6
	buf := make([]byte, 2048)
	var prev uint16
	for i := 0; i < wantPackets; i++ {
		ln.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := ln.ReadFrom(buf)
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			t.Fatalf("packet %d: unmarshal: %v", i, err)
		}
		if pkt.Version != 2 || pkt.PayloadType != 96 {
			t.Errorf("packet %d: version %d payload type %d", i, pkt.Version, pkt.PayloadType)
		}
		if pkt.Marker != (i == 0) {
			t.Errorf("packet %d: marker %v", i, pkt.Marker)
		}
		if i > 0 && pkt.SequenceNumber != prev+1 {
			t.Errorf("packet %d: sequence %d after %d", i, pkt.SequenceNumber, prev)
		}
		prev = pkt.SequenceNumber

		if len(pkt.Payload) != cfg.FrameBytes() {
			t.Fatalf("packet %d: payload %d bytes, want %d", i, len(pkt.Payload), cfg.FrameBytes())
		}
		samples := L16ToSamples(pkt.Payload)
		for j := 0; j < len(samples); j += 2 {
			if samples[j] != 0 {
				t.Fatalf("packet %d: left channel not silent when panned right", i)
			}
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.IsPlaying() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if d.IsPlaying() {
		t.Error("Expected cue to finish")
	}

	stats := d.Stats()
	if stats.Plays != 1 || stats.PacketsSent != wantPackets {
		t.Errorf("unexpected stats %+v", stats)
	}
	if d.Level() <= 0 {
		t.Error("Expected a non-zero level for the rendered cue")
	}
}

func TestRTPDevice_CloseStopsCue(t *testing.T) {
	ln, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := DefaultConfig()
	cfg.Backend = BackendRTP
	cfg.Addr = ln.LocalAddr().String()
	cfg.ToneDuration = 2 * time.Second

	d, err := NewRTPDevice(cfg, log.Nop())
	if err != nil {
		t.Fatalf("NewRTPDevice error: %v", err)
	}
	d.Play()
	d.Play()

	if err := d.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if d.IsPlaying() {
		t.Error("Expected idle after Close")
	}
	if !errors.Is(d.Close(), ErrClosed) {
		t.Error("Expected ErrClosed on second Close")
	}

	d.Play()
	if d.IsPlaying() {
		t.Error("Play after Close should be ignored")
	}
}
