package app

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/ayusman/rtspwatch/internal/detector"
	"gocv.io/x/gocv"
)

// Overlay colors.
var (
	colorRed    = color.RGBA{R: 255, A: 255}
	colorGreen  = color.RGBA{G: 255, A: 255}
	colorYellow = color.RGBA{R: 255, G: 255, A: 255}
	colorOrange = color.RGBA{R: 255, G: 165, A: 255}
	colorCyan   = color.RGBA{G: 255, B: 255, A: 255}
	colorWhite  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorGray   = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	colorBlack  = color.RGBA{A: 255}
)

const font = gocv.FontHersheySimplex

// putText draws text with a dark outline so it stays readable on any
// background.
func putText(img *gocv.Mat, text string, org image.Point, scale float64, c color.RGBA, thickness int) {
	gocv.PutText(img, text, org, font, scale, colorBlack, thickness+2)
	gocv.PutText(img, text, org, font, scale, c, thickness)
}

func fillRect(img *gocv.Mat, r image.Rectangle, c color.RGBA) {
	gocv.Rectangle(img, r, c, -1)
}

// hudLines draws lines of text top-left, starting at y.
func hudLines(img *gocv.Mat, y int, lines ...string) {
	for i, line := range lines {
		putText(img, line, image.Pt(10, y+i*26), 0.6, colorWhite, 1)
	}
}

// drawStatusBar draws the mode and armed state along the bottom edge.
func drawStatusBar(img *gocv.Mat, mode string, armed, stale bool) {
	if img.Empty() {
		return
	}
	h := img.Rows()

	state, c := "DISARMED", colorRed
	if armed {
		state, c = "ARMED", colorGreen
	}
	text := fmt.Sprintf("%s | %s", strings.ToUpper(mode), state)
	putText(img, text, image.Pt(10, h-12), 0.6, c, 2)

	if stale {
		putText(img, "RECONNECTING...", image.Pt(img.Cols()-220, h-12), 0.6, colorOrange, 2)
	}
}

// drawHand marks every landmark of hand.
func drawHand(img *gocv.Mat, hand *detector.HandLandmarks) {
	w, h := img.Cols(), img.Rows()
	for i := range hand.Points {
		gocv.Circle(img, hand.Pixel(i, w, h), 3, colorCyan, -1)
	}
}
