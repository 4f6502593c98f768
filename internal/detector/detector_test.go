package detector

import (
	"errors"
	"image"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestHandLandmarks_Distance2D(t *testing.T) {
	hand := HandLandmarks{}
	hand.Points[ThumbTip] = Point3D{X: 0.10, Y: 0.20, Z: 0.5}
	hand.Points[IndexTip] = Point3D{X: 0.13, Y: 0.24, Z: -0.5}

	got := hand.Distance2D(ThumbTip, IndexTip)
	if math.Abs(got-0.05) > epsilon {
		t.Errorf("Distance2D() = %f, want 0.05 (depth ignored)", got)
	}
}

func TestHandLandmarks_Pixel(t *testing.T) {
	tests := []struct {
		name string
		p    Point3D
		want image.Point
	}{
		{"center", Point3D{X: 0.5, Y: 0.5}, image.Pt(320, 240)},
		{"origin", Point3D{X: 0, Y: 0}, image.Pt(0, 0)},
		{"clamped high", Point3D{X: 1.2, Y: 1.0}, image.Pt(639, 479)},
		{"clamped low", Point3D{X: -0.1, Y: -0.3}, image.Pt(0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hand := HandLandmarks{}
			hand.Points[IndexTip] = tt.p
			if got := hand.Pixel(IndexTip, 640, 480); got != tt.want {
				t.Errorf("Pixel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShiftLandmarks(t *testing.T) {
	hand := OpenPalmLandmarks()
	shifted := ShiftLandmarks(hand, 0.1, -0.05)

	if math.Abs(shifted.Points[Wrist].X-0.6) > epsilon || math.Abs(shifted.Points[Wrist].Y-0.75) > epsilon {
		t.Errorf("shifted wrist = %+v", shifted.Points[Wrist])
	}
	if hand.Points[Wrist].X != 0.5 {
		t.Error("ShiftLandmarks modified its input")
	}
}

func TestPinchLandmarks(t *testing.T) {
	hand := PinchLandmarks(0.03)
	got := hand.Distance2D(ThumbTip, IndexTip)
	if math.Abs(got-0.03) > epsilon {
		t.Errorf("thumb-index gap = %f, want 0.03", got)
	}
}

func TestPerson(t *testing.T) {
	p := PersonAt(7, 100, 200)
	if got := p.Center(); got != image.Pt(100, 200) {
		t.Errorf("Center() = %v, want (100,200)", got)
	}
	if !p.Tracked() {
		t.Error("expected tracked person")
	}

	p.TrackID = UnknownTrackID
	if p.Tracked() {
		t.Error("expected untracked person")
	}
}

func TestToPeople(t *testing.T) {
	id := 4
	boxes := []jsonBox{
		{XYXY: [4]float64{10, 20, 50, 120}, Class: 0, Confidence: 0.8, TrackID: &id},
		{XYXY: [4]float64{0, 0, 5, 5}, Class: 2, Confidence: 0.9},
		{XYXY: [4]float64{60, 20, 90, 110}, Class: 0, Confidence: 0.5},
	}

	t.Run("tracking keeps ids", func(t *testing.T) {
		people := toPeople(boxes, true)
		if len(people) != 2 {
			t.Fatalf("expected 2 people (non-person class dropped), got %d", len(people))
		}
		if people[0].TrackID != 4 {
			t.Errorf("people[0].TrackID = %d, want 4", people[0].TrackID)
		}
		if people[1].TrackID != UnknownTrackID {
			t.Errorf("missing id should map to UnknownTrackID, got %d", people[1].TrackID)
		}
		if want := image.Rect(10, 20, 50, 120); people[0].Box != want {
			t.Errorf("Box = %v, want %v", people[0].Box, want)
		}
	})

	t.Run("prediction drops ids", func(t *testing.T) {
		for _, p := range toPeople(boxes, false) {
			if p.Tracked() {
				t.Errorf("expected no track id without tracking, got %d", p.TrackID)
			}
		}
	})
}

func TestJSONHand_ToHandLandmarks(t *testing.T) {
	h := jsonHand{Handedness: HandLeft, Score: 0.8}
	for i := 0; i < NumLandmarks; i++ {
		h.Points = append(h.Points, jsonPoint{X: float64(i) / 100, Y: 0.5})
	}

	lm := h.toHandLandmarks()
	if lm.Handedness != HandLeft || lm.Score != 0.8 {
		t.Errorf("metadata not preserved: %s %f", lm.Handedness, lm.Score)
	}
	if lm.Points[PinkyTip].X != 0.20 {
		t.Errorf("PinkyTip.X = %f, want 0.20", lm.Points[PinkyTip].X)
	}
}

func TestMockHandDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockHandDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockHandDetector()
		mock.SetHands(FistLandmarks(), OpenPalmLandmarks())

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
		if mock.Calls() != 1 {
			t.Errorf("expected 1 call, got %d", mock.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockHandDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("implements HandDetector interface", func(t *testing.T) {
		var _ HandDetector = (*MockHandDetector)(nil)
		var _ HandDetector = (*MediaPipeDetector)(nil)
	})
}

func TestMockPersonDetector(t *testing.T) {
	mock := NewMockPersonDetector()
	mock.SetPeople(PersonAt(1, 10, 10), PersonAt(UnknownTrackID, 50, 50))

	people, err := mock.Detect(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(people) != 2 {
		t.Errorf("expected 2 people, got %d", len(people))
	}

	var _ PersonDetector = (*MockPersonDetector)(nil)
	var _ PersonDetector = (*YOLODetector)(nil)
}

func TestPresetLandmarks(t *testing.T) {
	t.Run("open palm tips above pip", func(t *testing.T) {
		lm := OpenPalmLandmarks()
		for _, pair := range [][2]int{{IndexTip, IndexPIP}, {MiddleTip, MiddlePIP}, {RingTip, RingPIP}, {PinkyTip, PinkyPIP}} {
			if lm.Points[pair[0]].Y >= lm.Points[pair[1]].Y {
				t.Errorf("landmark %d should be above %d", pair[0], pair[1])
			}
		}
	})

	t.Run("fist tips below pip", func(t *testing.T) {
		lm := FistLandmarks()
		for _, pair := range [][2]int{{IndexTip, IndexPIP}, {MiddleTip, MiddlePIP}, {RingTip, RingPIP}, {PinkyTip, PinkyPIP}} {
			if lm.Points[pair[0]].Y <= lm.Points[pair[1]].Y {
				t.Errorf("landmark %d should be below %d", pair[0], pair[1])
			}
		}
	})
}
