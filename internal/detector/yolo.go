package detector

import (
	"fmt"
	"image"
	"strconv"

	"gocv.io/x/gocv"
)

// personClassID is the COCO class index for "person".
const personClassID = 0

// YOLODetector implements PersonDetector using a Python Ultralytics service.
// In tracking mode the service keeps tracker state between frames and
// reports persistent IDs; otherwise it runs plain prediction.
type YOLODetector struct {
	config  PersonConfig
	service *serviceProcess

	frameCount int
	last       []Person
}

// NewYOLODetector creates a new person detector.
// The Python process is started lazily on first detection.
func NewYOLODetector(config PersonConfig) (*YOLODetector, error) {
	args := []string{
		"--model", config.ModelPath,
		"--conf", strconv.FormatFloat(config.MinConfidence, 'f', 2, 64),
		"--imgsz", strconv.Itoa(config.ImageSize),
	}
	if config.Tracking {
		args = append(args, "--track")
	}

	svc, err := newServiceProcess("yolo_service.py", args...)
	if err != nil {
		return nil, err
	}

	return &YOLODetector{config: config, service: svc}, nil
}

// Detect returns the people found in frame. When SkipEveryN is above one,
// inference only runs on every Nth call and the previous result is reused.
func (d *YOLODetector) Detect(frame *gocv.Mat) ([]Person, error) {
	d.frameCount++
	if d.config.SkipEveryN > 1 && d.frameCount%d.config.SkipEveryN != 0 {
		return d.last, nil
	}

	var response struct {
		Boxes []jsonBox `json:"boxes"`
	}
	if err := d.service.roundTrip(frame, &response); err != nil {
		return nil, fmt.Errorf("yolo: %w", err)
	}

	d.last = toPeople(response.Boxes, d.config.Tracking)
	return d.last, nil
}

// Close shuts down the Python process.
func (d *YOLODetector) Close() error {
	return d.service.close()
}

// jsonBox represents one detection from the Python service.
// TrackID is absent until the tracker has initialized.
type jsonBox struct {
	XYXY       [4]float64 `json:"xyxy"`
	Class      int        `json:"cls"`
	Confidence float64    `json:"conf"`
	TrackID    *int       `json:"id"`
}

func toPeople(boxes []jsonBox, tracking bool) []Person {
	people := make([]Person, 0, len(boxes))
	for _, b := range boxes {
		if b.Class != personClassID {
			continue
		}

		id := UnknownTrackID
		if tracking && b.TrackID != nil {
			id = *b.TrackID
		}

		people = append(people, Person{
			Box:        image.Rect(int(b.XYXY[0]), int(b.XYXY[1]), int(b.XYXY[2]), int(b.XYXY[3])),
			Confidence: b.Confidence,
			TrackID:    id,
		})
	}
	return people
}
