package app

import (
	"time"

	"gocv.io/x/gocv"
)

// pipelineState tracks idle/active mode between ticks.
type pipelineState struct {
	active     bool
	lastMotion time.Time
}

// runPipeline reads frames until stopCh closes.
//
// The loop idles at IdleFPS and only runs hand detection once motion is
// seen, switching to ActiveFPS. After IdleTimeout without motion it drops
// back to idle and reports a no-signal frame so a held sign is released.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	state := pipelineState{lastMotion: time.Now()}
	ticker := time.NewTicker(time.Second / IdleFPS)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				a.logger.Debug("failed to read frame", "error", err)
				continue
			}

			if fps, changed := a.step(&state, frame, now); changed {
				a.camera.SetFPS(fps)
				ticker.Reset(time.Second / time.Duration(fps))
			}
			frame.Close()
		}
	}
}

// step handles one frame and reports a frame rate change.
func (a *App) step(state *pipelineState, frame *gocv.Mat, now time.Time) (int, bool) {
	if err := a.preview.Publish(frame); err != nil {
		a.logger.Debug("failed to publish preview", "error", err)
	}

	motion := a.motion.Detect(frame)
	fps, changed := 0, false

	switch {
	case motion.Detected:
		state.lastMotion = now
		if !state.active {
			state.active = true
			fps, changed = ActiveFPS, true
			a.logger.Debug("switched to active mode", "change", motion.ChangePercent)
		}
	case state.active && now.Sub(state.lastMotion) > IdleTimeout:
		state.active = false
		a.HandleNoSignal()
		a.logger.Debug("switched to idle mode")
		return IdleFPS, true
	}

	if !state.active {
		return fps, changed
	}

	d := a.Detector()
	if d == nil {
		return fps, changed
	}

	hands, err := d.Detect(frame)
	if err != nil {
		a.logger.Warn("hand detection failed", "error", err)
		a.HandleNoSignal()
		return fps, changed
	}

	a.ProcessHands(hands)
	return fps, changed
}
