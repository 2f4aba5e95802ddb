package readback

import (
	"errors"
	"image"

	"github.com/vova616/screenshot"
)

var errEmptyRect = errors.New("readback: empty rectangle")

// Grabber captures a screen rectangle.
type Grabber interface {
	Grab(rect image.Rectangle) (*image.RGBA, error)
}

// GrabberFunc adapts a function to Grabber.
type GrabberFunc func(rect image.Rectangle) (*image.RGBA, error)

func (f GrabberFunc) Grab(rect image.Rectangle) (*image.RGBA, error) { return f(rect) }

// ScreenGrabber reads pixels back from the desktop.
type ScreenGrabber struct{}

func (ScreenGrabber) Grab(rect image.Rectangle) (*image.RGBA, error) {
	if rect.Empty() {
		return nil, errEmptyRect
	}
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// ScreenBounds returns the primary screen rectangle.
func ScreenBounds() (image.Rectangle, error) {
	return screenshot.ScreenRect()
}
