package app

import (
	"fmt"
	"image"
	"log"
	"time"

	"github.com/ayusman/rtspwatch/internal/config"
	"github.com/ayusman/rtspwatch/internal/detector"
	"github.com/ayusman/rtspwatch/internal/eventlog"
	"github.com/ayusman/rtspwatch/internal/zone"
	"gocv.io/x/gocv"
)

// IntrusionConfig controls the intrusion handler.
type IntrusionConfig struct {
	// SkipEveryN runs the detector on every Nth frame and reuses the last
	// detections in between. Values below 2 detect on every frame.
	SkipEveryN       int
	SnapshotCooldown time.Duration

	// FaceCascade enables face blurring when set.
	FaceCascade string
}

// Intrusion raises an alert whenever a person is inside the zone polygon.
type Intrusion struct {
	cfg      IntrusionConfig
	people   detector.PersonDetector
	snaps    eventlog.Snapshotter
	blur     *FaceBlurrer
	updates  <-chan zone.Polygon
	polygon  zone.Polygon
	presence *zone.PresenceTracker

	frames       int
	last         []detector.Person
	lastSnapshot time.Time
	snapshotted  bool
}

// NewIntrusion creates the handler. It subscribes to zc so polygon edits
// apply from the next frame. A cascade that fails to load disables face
// blurring with a warning.
func NewIntrusion(cfg IntrusionConfig, people detector.PersonDetector, zc *zone.Config, snaps eventlog.Snapshotter) (*Intrusion, error) {
	if people == nil {
		return nil, fmt.Errorf("intrusion: person detector is required")
	}
	if zc == nil {
		return nil, fmt.Errorf("intrusion: zone config is required")
	}

	h := &Intrusion{
		cfg:      cfg,
		people:   people,
		snaps:    snaps,
		updates:  zc.Subscribe(),
		polygon:  zc.Polygon(),
		presence: zone.NewPresenceTracker(),
	}

	if cfg.FaceCascade != "" {
		blur, err := NewFaceBlurrer(cfg.FaceCascade)
		if err != nil {
			log.Printf("intrusion: face blur disabled: %v", err)
		} else {
			h.blur = blur
		}
	}
	return h, nil
}

// Mode implements Handler.
func (h *Intrusion) Mode() string { return config.ModeIntrusion }

// Occupancy returns the current number of tracked people inside the zone.
func (h *Intrusion) Occupancy() int { return h.presence.Count() }

// Process implements Handler.
func (h *Intrusion) Process(frame *gocv.Mat, now time.Time, armed bool) (Result, error) {
	h.pollZone()

	people, err := h.detect(frame)
	if err != nil {
		h.polygon.Draw(frame, colorYellow, 2)
		return Result{}, fmt.Errorf("detect people: %w", err)
	}

	visible, inside, detections := zone.SplitTracks(people, h.polygon)
	occupancy := h.presence.Update(visible, inside)

	insideAny := false
	for _, d := range detections {
		if d.Inside {
			insideAny = true
			break
		}
	}
	alert := insideAny || occupancy > 0

	if h.blur != nil {
		h.blur.Apply(frame)
	}
	h.draw(frame, detections, occupancy, alert, armed)

	if !alert || !armed {
		return Result{}, nil
	}

	var events []eventlog.Event
	for _, d := range detections {
		if !d.Inside {
			continue
		}
		events = append(events, eventlog.Event{
			Time:       now,
			Mode:       config.ModeIntrusion,
			EventID:    eventID(d.Person),
			Confidence: d.Person.Confidence,
			Status:     eventlog.StatusInsideZone,
		})
	}

	// An occupant standing outside the zone keeps the alert up but writes
	// no rows, so there is nothing to attach a snapshot to.
	if len(events) == 0 {
		return Result{}, nil
	}
	if path, ok := h.snapshot(frame, now); ok {
		events[0].Snapshot = path
	}
	return Result{Events: events}, nil
}

// Reset implements Handler.
func (h *Intrusion) Reset(time.Time) {
	h.presence.Reset()
	h.last = nil
	h.frames = 0
}

// Close implements Handler.
func (h *Intrusion) Close() error {
	if h.blur != nil {
		return h.blur.Close()
	}
	return nil
}

func (h *Intrusion) pollZone() {
	select {
	case p := <-h.updates:
		h.polygon = p
	default:
	}
}

func (h *Intrusion) detect(frame *gocv.Mat) ([]detector.Person, error) {
	n := h.frames
	h.frames++
	if h.cfg.SkipEveryN > 1 && n%h.cfg.SkipEveryN != 0 {
		return h.last, nil
	}

	people, err := h.people.Detect(frame)
	if err != nil {
		return nil, err
	}
	h.last = people
	return people, nil
}

// snapshot saves frame at most once per SnapshotCooldown.
func (h *Intrusion) snapshot(frame *gocv.Mat, now time.Time) (string, bool) {
	if h.snaps == nil {
		return "", false
	}
	if h.snapshotted && now.Sub(h.lastSnapshot) < h.cfg.SnapshotCooldown {
		return "", false
	}

	path, err := h.snaps.SaveSnapshot(frame, now)
	if err != nil {
		log.Printf("intrusion: %v", err)
		return "", false
	}
	h.lastSnapshot = now
	h.snapshotted = true
	log.Printf("intrusion: snapshot saved to %s", path)
	return path, true
}

func (h *Intrusion) draw(frame *gocv.Mat, detections []zone.Detection, occupancy int, alert, armed bool) {
	h.polygon.Draw(frame, colorYellow, 2)

	for _, d := range detections {
		c := colorGreen
		if d.Inside {
			c = colorRed
		}
		gocv.Rectangle(frame, d.Person.Box, c, 2)
		gocv.Circle(frame, d.Person.Center(), 4, c, -1)

		label := fmt.Sprintf("%s %.2f", eventID(d.Person), d.Person.Confidence)
		putText(frame, label, image.Pt(d.Person.Box.Min.X, d.Person.Box.Min.Y-8), 0.5, c, 1)
	}

	w := frame.Cols()
	counter := image.Rect(w-240, 10, w-10, 50)
	fillRect(frame, counter, colorOrange)
	gocv.PutText(frame, fmt.Sprintf("INSIDE ZONE: %d", occupancy),
		image.Pt(counter.Min.X+10, counter.Max.Y-12), font, 0.7, colorBlack, 2)

	if alert {
		if armed {
			putText(frame, "INTRUSION ALERT", image.Pt(20, 40), 1.0, colorRed, 2)
		} else {
			putText(frame, "ZONE OCCUPIED", image.Pt(20, 40), 1.0, colorOrange, 2)
		}
	}
}

// eventID formats the log subject for a person.
func eventID(p detector.Person) string {
	if !p.Tracked() {
		return "Unknown"
	}
	return fmt.Sprintf("ID:%d", p.TrackID)
}
