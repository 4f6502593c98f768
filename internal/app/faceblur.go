package app

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Face blur parameters.
const (
	faceScaleFactor  = 1.1
	faceMinNeighbors = 5
	faceMinSize      = 40
	facePadding      = 0.15
	faceBlurKernel   = 45
)

// FaceBlurrer hides faces with a Haar cascade and a Gaussian blur.
type FaceBlurrer struct {
	classifier gocv.CascadeClassifier
}

// NewFaceBlurrer loads the cascade at path.
func NewFaceBlurrer(path string) (*FaceBlurrer, error) {
	c := gocv.NewCascadeClassifier()
	if !c.Load(path) {
		c.Close()
		return nil, fmt.Errorf("load face cascade %s", path)
	}
	return &FaceBlurrer{classifier: c}, nil
}

// Apply blurs every detected face in place, padded by 15% on each side,
// and returns the number of faces found.
func (b *FaceBlurrer) Apply(frame *gocv.Mat) int {
	if frame.Empty() {
		return 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)

	faces := b.classifier.DetectMultiScaleWithParams(
		gray, faceScaleFactor, faceMinNeighbors, 0,
		image.Pt(faceMinSize, faceMinSize), image.Pt(0, 0),
	)

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	for _, r := range faces {
		region := padRect(r, facePadding).Intersect(bounds)
		if region.Empty() {
			continue
		}
		roi := frame.Region(region)
		gocv.GaussianBlur(roi, &roi, image.Pt(faceBlurKernel, faceBlurKernel), 0, 0, gocv.BorderDefault)
		roi.Close()
	}
	return len(faces)
}

// Close releases the classifier.
func (b *FaceBlurrer) Close() error {
	return b.classifier.Close()
}

func padRect(r image.Rectangle, frac float64) image.Rectangle {
	dx := int(float64(r.Dx()) * frac)
	dy := int(float64(r.Dy()) * frac)
	return image.Rect(r.Min.X-dx, r.Min.Y-dy, r.Max.X+dx, r.Max.Y+dy)
}
