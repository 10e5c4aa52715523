package audioio

// Device is an audio output the feedback loop commands.
// Implementations never fail loudly: transport errors are logged and dropped.
type Device interface {
	// SetVolume sets the output gain, 0 (silent) to 1 (full).
	SetVolume(v float64)

	// SetPan sets the stereo balance, -1 (left) to 1 (right).
	SetPan(p float64)

	// SetPitch sets the playback pitch multiplier (1 = unchanged).
	SetPitch(p float64)

	// Play starts the cue from the beginning, restarting it if already playing.
	Play()

	// IsPlaying reports whether a cue is currently sounding.
	IsPlaying() bool
}

// DeviceStats contains statistics about an output device.
type DeviceStats struct {
	// Plays is the number of Play calls that produced audio.
	Plays int64 `json:"plays"`

	// PacketsSent is the number of transport packets written.
	PacketsSent int64 `json:"packets_sent"`

	// SendErrors is the number of failed transport writes.
	SendErrors int64 `json:"send_errors"`

	// Playing indicates if a cue is currently sounding.
	Playing bool `json:"playing"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`

	// Volume, Pan and Pitch are the current output parameters.
	Volume float64 `json:"volume"`
	Pan    float64 `json:"pan"`
	Pitch  float64 `json:"pitch"`
}

// DeviceWithStats extends Device with statistics.
type DeviceWithStats interface {
	Device
	Stats() DeviceStats
}

func clampUnit(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampPan(p float64) float64 {
	if p < -1 {
		return -1
	}
	if p > 1 {
		return 1
	}
	if p != p {
		return 0
	}
	return p
}
