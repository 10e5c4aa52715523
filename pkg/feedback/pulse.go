package feedback

import (
	"time"
)

// pulse is one run of the pulse loop. Its stop channel is the cancellation
// token; the loop also re-checks ownership under the controller lock before
// every play so that a stop cannot race with an already-expired wait.
type pulse struct {
	stop    chan struct{}
	started time.Time
}

// StartPulse starts the repeating play-then-wait cue. No-op if it is
// already running or if there is no device.
func (c *Controller) StartPulse() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startPulseLocked()
}

// StopPulse stops the cue. Once it returns no further Play is issued.
// No-op if the loop is not running.
func (c *Controller) StopPulse() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPulseLocked()
}

// Close stops the pulse loop and waits for its goroutine to exit.
func (c *Controller) Close() error {
	c.StopPulse()
	c.pulses.Wait()
	return nil
}

func (c *Controller) startPulseLocked() {
	if c.pulse != nil || c.device == nil {
		return
	}

	p := &pulse{stop: make(chan struct{}), started: time.Now()}
	c.pulse = p
	c.state.PulseActive = true
	if c.observer != nil {
		c.observer.PulseChanged(true)
	}
	c.logger.Debug("pulse started", "tempo", c.state.Tempo)

	c.pulses.Add(1)
	go c.runPulse(p)
}

func (c *Controller) stopPulseLocked() {
	if c.pulse == nil {
		return
	}

	close(c.pulse.stop)
	c.logger.Debug("pulse stopped", "ran", time.Since(c.pulse.started).Round(time.Millisecond))
	c.pulse = nil
	c.state.PulseActive = false
	if c.observer != nil {
		c.observer.PulseChanged(false)
	}
}

// runPulse plays, waits 1/tempo, and repeats until p is cancelled.
func (c *Controller) runPulse(p *pulse) {
	defer c.pulses.Done()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		wait, ok := c.fire(p)
		if !ok {
			return
		}

		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}

		select {
		case <-p.stop:
			return
		case <-timer.C:
		}
	}
}

// fire plays one pulse if p is still the active loop and returns the wait
// before the next one, derived from the tempo at this moment.
func (c *Controller) fire(p *pulse) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pulse != p {
		return 0, false
	}

	c.device.Play()
	if c.observer != nil {
		c.observer.PulseFired()
	}
	return interval(c.state.Tempo), true
}

// interval converts a tempo in pulses per second into the gap between pulses.
func interval(tempo float64) time.Duration {
	return time.Duration(float64(time.Second) / tempo)
}
