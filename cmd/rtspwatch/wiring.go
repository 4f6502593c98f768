package main

import (
	"errors"
	"fmt"
	"log"
	"os/exec"
	"runtime"

	"github.com/ayusman/rtspwatch/internal/app"
	"github.com/ayusman/rtspwatch/internal/config"
	"github.com/ayusman/rtspwatch/internal/detector"
	"github.com/ayusman/rtspwatch/internal/eventlog"
	"github.com/ayusman/rtspwatch/internal/tray"
)

// detectors holds whichever detector the mode needs.
type detectors struct {
	hands  detector.HandDetector
	people detector.PersonDetector
}

func (d *detectors) Close() error {
	var errs []error
	if d.hands != nil {
		errs = append(errs, d.hands.Close())
	}
	if d.people != nil {
		errs = append(errs, d.people.Close())
	}
	return errors.Join(errs...)
}

// newDetectors starts the detector for cfg.Mode. The Python services are
// launched lazily on the first frame.
func newDetectors(cfg *config.Config, mock bool) (*detectors, error) {
	d := &detectors{}

	if cfg.Mode == config.ModeIntrusion {
		if mock {
			log.Println("detector: using mock person detector")
			d.people = detector.NewMockPersonDetector()
			return d, nil
		}
		pc := detector.DefaultPersonConfig()
		pc.ModelPath = cfg.Resolve(cfg.Intrusion.Model)
		pc.MinConfidence = cfg.Intrusion.MinConfidence
		pc.ImageSize = cfg.Intrusion.ImageSize
		pc.Tracking = cfg.Intrusion.Tracking
		// The intrusion handler does its own frame skipping.
		pc.SkipEveryN = 0

		people, err := detector.NewYOLODetector(pc)
		if err != nil {
			return nil, fmt.Errorf("person detector: %w", err)
		}
		d.people = people
		return d, nil
	}

	if mock {
		log.Println("detector: using mock hand detector")
		d.hands = detector.NewMockHandDetector()
		return d, nil
	}
	hands, err := detector.NewMediaPipeDetector(detector.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("hand detector: %w", err)
	}
	d.hands = hands
	return d, nil
}

// fanout delivers each event to several publishers.
type fanout []app.Publisher

func (f fanout) Publish(e eventlog.Event) {
	for _, p := range f {
		p.Publish(e)
	}
}

// trayPublisher shows the latest event label in the tray menu.
type trayPublisher struct {
	tray *tray.Tray
}

func (p trayPublisher) Publish(e eventlog.Event) {
	p.tray.SetLastEvent(e.EventID)
}

func publishers(hub app.Publisher, tr *tray.Tray) app.Publisher {
	if tr == nil {
		return hub
	}
	return fanout{hub, trayPublisher{tray: tr}}
}

// openBrowser opens url with the platform's default handler.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}
