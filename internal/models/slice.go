package models

import (
	"image"
)

// Slice represents a single 2D plane of a volume as read from disk
type Slice struct {
	// Image is the decoded slice
	Image image.Image

	// Index is the position of this slice in the sorted sequence
	Index int

	// Filename is the original filename of the slice
	Filename string
}

// Bounds returns the width and height of the slice
func (s Slice) Bounds() (int, int) {
	b := s.Image.Bounds()
	return b.Dx(), b.Dy()
}
