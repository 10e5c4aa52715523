package audioio

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"

	"github.com/teslashibe/rockguide/internal/log"
)

// RTPDevice renders each cue locally and streams it as L16 stereo RTP
// packets to a UDP listener (a mixer, ffplay, or a GStreamer pipeline).
//
// Volume, pan and pitch are sampled when Play is called. A Play while a
// cue is still streaming abandons the old cue and starts over.
type RTPDevice struct {
	cfg    Config
	logger *slog.Logger
	conn   net.Conn
	beep   []int16

	mu        sync.Mutex
	volume    float64
	pan       float64
	pitch     float64
	playing   bool
	closed    bool
	gen       uint64
	cancel    chan struct{}
	seq       uint16
	timestamp uint32
	ssrc      uint32
	lastLevel float64

	wg sync.WaitGroup

	plays       atomic.Int64
	packetsSent atomic.Int64
	sendErrors  atomic.Int64
}

// NewRTPDevice creates a device sending to cfg.Addr.
func NewRTPDevice(cfg Config, logger *slog.Logger) (*RTPDevice, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = log.Or(logger)

	conn, err := net.Dial("udp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial rtp %s: %w", cfg.Addr, err)
	}

	d := &RTPDevice{
		cfg:       cfg,
		logger:    logger.With("component", "audio", "backend", BackendRTP, "addr", cfg.Addr),
		conn:      conn,
		beep:      Beep(cfg.ToneFrequency, cfg.ToneDuration, cfg.SampleRate),
		volume:    1,
		pitch:     1,
		seq:       uint16(rand.Uint32()),
		timestamp: rand.Uint32(),
		ssrc:      rand.Uint32(),
	}

	d.logger.Info("rtp audio device ready",
		"sample_rate", cfg.SampleRate,
		"payload_type", cfg.PayloadType,
		"frame_ms", cfg.FrameDuration.Milliseconds(),
		"ssrc", d.ssrc,
	)
	return d, nil
}

// SetVolume sets the gain for the next cue.
func (d *RTPDevice) SetVolume(v float64) {
	d.mu.Lock()
	d.volume = clampUnit(v)
	d.mu.Unlock()
}

// SetPan sets the balance for the next cue.
func (d *RTPDevice) SetPan(p float64) {
	d.mu.Lock()
	d.pan = clampPan(p)
	d.mu.Unlock()
}

// SetPitch sets the pitch multiplier for the next cue.
func (d *RTPDevice) SetPitch(p float64) {
	if !(p > 0) {
		return
	}
	d.mu.Lock()
	d.pitch = p
	d.mu.Unlock()
}

// Play renders the cue with the current parameters and starts streaming it.
func (d *RTPDevice) Play() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if d.playing {
		close(d.cancel)
	}

	mono := Repitch(d.beep, d.pitch, d.cfg.SampleRate)
	clip := PanStereo(mono, d.volume, d.pan)
	d.lastLevel = CalculateRMS(clip)

	d.gen++
	d.cancel = make(chan struct{})
	d.playing = true
	d.plays.Add(1)

	d.wg.Add(1)
	go d.stream(d.gen, d.cancel, clip)
}

// IsPlaying reports whether a cue is still streaming.
func (d *RTPDevice) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

// stream paces packets out in real time.
func (d *RTPDevice) stream(gen uint64, cancel <-chan struct{}, clip []int16) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		if d.gen == gen {
			d.playing = false
		}
		d.mu.Unlock()
	}()

	frame := d.cfg.FrameSamples() * Channels
	ticker := time.NewTicker(d.cfg.FrameDuration)
	defer ticker.Stop()

	for off := 0; off < len(clip); off += frame {
		chunk := make([]int16, frame)
		copy(chunk, clip[off:])

		d.send(chunk, off == 0)

		// Wait out every frame, including the last, so IsPlaying covers the whole cue.
		select {
		case <-cancel:
			return
		case <-ticker.C:
		}
	}
}

func (d *RTPDevice) send(chunk []int16, first bool) {
	d.mu.Lock()
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         first,
			PayloadType:    d.cfg.PayloadType,
			SequenceNumber: d.seq,
			Timestamp:      d.timestamp,
			SSRC:           d.ssrc,
		},
		Payload: SamplesToL16(chunk),
	}
	d.seq++
	d.timestamp += uint32(len(chunk) / Channels)
	d.mu.Unlock()

	buf, err := pkt.Marshal()
	if err != nil {
		d.sendErrors.Add(1)
		d.logger.Debug("rtp marshal failed", "error", err)
		return
	}
	if _, err := d.conn.Write(buf); err != nil {
		d.sendErrors.Add(1)
		d.logger.Debug("rtp send failed", "error", err)
		return
	}
	d.packetsSent.Add(1)
}

// Stats returns device statistics.
func (d *RTPDevice) Stats() DeviceStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DeviceStats{
		Plays:       d.plays.Load(),
		PacketsSent: d.packetsSent.Load(),
		SendErrors:  d.sendErrors.Load(),
		Playing:     d.playing,
		Backend:     string(BackendRTP),
		Volume:      d.volume,
		Pan:         d.pan,
		Pitch:       d.pitch,
	}
}

// Level returns the mean power of the last rendered cue, 0 to 1.
func (d *RTPDevice) Level() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastLevel
}

// Close stops any cue in flight and releases the socket.
func (d *RTPDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	if d.playing {
		close(d.cancel)
		d.playing = false
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("rtp audio device closed",
		"plays", d.plays.Load(),
		"packets_sent", d.packetsSent.Load(),
		"send_errors", d.sendErrors.Load(),
	)
	return d.conn.Close()
}

var _ DeviceWithStats = (*RTPDevice)(nil)
