package app

import (
	"log"
	"time"

	"github.com/ayusman/rtspwatch/internal/capture"
	"gocv.io/x/gocv"
)

// runPipeline is the processing loop. It polls the frame source at the
// idle or active rate, skipping frames it has already seen.
//
// Pipeline logic:
// 1. Start at IdleFPS
// 2. The motion gate opens on frame changes and switches to ActiveFPS
// 3. Every new frame goes through the mode handler, which annotates it
// 4. Events are logged and published; the annotated frame becomes the display
// 5. After the gate's quiet period the loop drops back to IdleFPS
// 6. When the stream goes stale the handler state is reset once
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	var lastSeq uint64
	active := false

	ticker := time.NewTicker(frameInterval(a.config.IdleFPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			frame, ok := a.config.Source.Latest()
			if !ok {
				continue
			}

			if frame.Seq == lastSeq {
				if a.markStale(frame.Stale) {
					a.flip(&frame)
					drawStatusBar(&frame.Mat, a.Mode(), a.Armed(), true)
					a.setDisplay(frame.Mat)
					continue
				}
				frame.Close()
				continue
			}
			lastSeq = frame.Seq
			a.markStale(frame.Stale)

			now := a.now()

			if a.config.Motion != nil {
				motion := a.config.Motion.Observe(&frame.Mat, now)
				if motion != active {
					active = motion
					fps := a.config.IdleFPS
					if active {
						fps = a.config.ActiveFPS
					}
					ticker.Reset(frameInterval(fps))
					a.setRate(active, fps)
					log.Printf("app: switched to %s mode (%d fps)", rateName(active), fps)
				}
			}

			a.processFrame(&frame, now)
		}
	}
}

// processFrame runs the handler on one frame and takes ownership of it.
func (a *App) processFrame(frame *capture.Frame, now time.Time) {
	if a.takeResetRequest() {
		a.config.Handler.Reset(now)
	}

	a.flip(frame)

	armed := a.Armed()
	result, err := a.config.Handler.Process(&frame.Mat, now, armed)
	if err != nil {
		log.Printf("app: %s: %v", a.Mode(), err)
	}

	drawStatusBar(&frame.Mat, a.Mode(), armed, frame.Stale)
	a.setDisplay(frame.Mat)

	a.mu.Lock()
	a.processed++
	a.mu.Unlock()

	if armed {
		for _, e := range result.Events {
			a.record(e)
		}
	}
	if result.Disarm {
		if err := a.SetArmed(false); err != nil {
			log.Printf("app: %v", err)
		}
	}
}

// markStale records stream staleness. Gesture state is reset when the
// stream first goes stale so a stall never completes a hold. It reports
// whether the stream has just gone stale.
func (a *App) markStale(stale bool) bool {
	a.mu.Lock()
	became := stale && !a.stale
	a.stale = stale
	if became {
		a.resetReq = true
	}
	a.mu.Unlock()

	if became {
		log.Println("app: stream stale, resetting gesture state")
	}
	return became
}

// flip mirrors the frame for hand modes so on-screen motion matches the
// operator's.
func (a *App) flip(frame *capture.Frame) {
	if a.config.FlipHorizontal {
		gocv.Flip(frame.Mat, &frame.Mat, 1)
	}
}

func (a *App) setRate(active bool, fps int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = active
	a.fps = fps
}

func frameInterval(fps int) time.Duration {
	return time.Second / time.Duration(fps)
}

func rateName(active bool) string {
	if active {
		return "active"
	}
	return "idle"
}
