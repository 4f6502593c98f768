package app

import (
	"fmt"

	"github.com/ayusman/rtspwatch/internal/config"
	"github.com/ayusman/rtspwatch/internal/detector"
	"github.com/ayusman/rtspwatch/internal/eventlog"
	"github.com/ayusman/rtspwatch/internal/zone"
)

// Deps are the collaborators a mode handler may need. Only the ones the
// configured mode uses must be set.
type Deps struct {
	Hands     detector.HandDetector
	People    detector.PersonDetector
	Actuator  Actuator
	Bindings  BindingLookup
	Zone      *zone.Config
	Snapshots eventlog.Snapshotter
}

// NewHandler builds the handler for cfg.Mode.
func NewHandler(cfg *config.Config, deps Deps) (Handler, error) {
	switch cfg.Mode {
	case config.ModeIntrusion:
		ic := IntrusionConfig{
			SkipEveryN:       cfg.Intrusion.SkipEveryN,
			SnapshotCooldown: config.Ms(cfg.Intrusion.SnapshotCooldownMs),
		}
		if cfg.Intrusion.BlurFaces {
			ic.FaceCascade = cfg.Resolve(cfg.Intrusion.FaceCascade)
		}
		return NewIntrusion(ic, deps.People, deps.Zone, deps.Snapshots)

	case config.ModeSlides:
		return NewSlides(SlidesConfig{
			Hold:        config.Ms(cfg.Slides.HoldMs),
			Cooldown:    config.Ms(cfg.Slides.CooldownMs),
			SwipeWindow: config.Ms(cfg.Slides.SwipeWindowMs),
			SwipeMinDx:  cfg.Slides.SwipeMinDx,
			SwipeMaxDy:  cfg.Slides.SwipeMaxDy,
		}, deps.Hands, deps.Actuator, deps.Bindings)

	case config.ModeAirDraw:
		return NewAirDraw(AirDrawConfig{
			ToggleHold:     config.Ms(cfg.AirDraw.ToggleHoldMs),
			ToggleCooldown: config.Ms(cfg.AirDraw.ToggleCooldownMs),
			Dwell:          config.Ms(cfg.AirDraw.DwellMs),
			DwellCooldown:  config.Ms(cfg.AirDraw.DwellCooldownMs),
			Smoothing:      cfg.AirDraw.Smoothing,
			Brush:          cfg.AirDraw.BrushThickness,
			Eraser:         cfg.AirDraw.EraserThickness,
			CapturesDir:    cfg.CapturesDir(),
		}, deps.Hands)

	case config.ModePinch:
		return NewPinch(PinchConfig{
			On:        cfg.Pinch.On,
			Off:       cfg.Pinch.Off,
			Smoothing: cfg.Pinch.Smoothing,
			Step:      cfg.Pinch.Step,
			Mouse:     cfg.Pinch.Mouse,
		}, deps.Hands, deps.Actuator)
	}
	return nil, fmt.Errorf("%w: unknown mode %q", config.ErrInvalid, cfg.Mode)
}
