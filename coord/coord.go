// seehuhn.de/go/pdfoverlay - place raster images on PDF pages
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package coord converts placement rectangles between the coordinate
// systems used by pdfoverlay.
//
// Three coordinate systems are involved:
//
//   - Document space uses the units of the PDF page (1/72 inch), with the
//     origin in the bottom-left corner of the page and y pointing up.
//   - Display space uses screen pixels of the rendered page, with the
//     origin in the top-left corner and y pointing down.
//   - Raster space uses the pixels of an exported image.  It has the same
//     orientation as display space, but a different scale.
//
// Display space is related to document space by the display scale, the
// number of screen pixels per document unit.
package coord

import (
	"image"
	"math"

	"seehuhn.de/go/geom/matrix"
)

// Size is the extent of a page or viewport.
type Size struct {
	Width, Height float64
}

// IsZero reports whether the size has no area.
func (s Size) IsZero() bool {
	return !(s.Width > 0 && s.Height > 0)
}

// Scale returns the size multiplied by f.
func (s Size) Scale(f float64) Size {
	return Size{Width: s.Width * f, Height: s.Height * f}
}

// Rect is an axis-aligned rectangle.  X and Y give the corner closest to
// the origin of the coordinate system the rectangle is expressed in.
type Rect struct {
	X, Y, Width, Height float64
}

// Valid reports whether the rectangle has positive width and height.
func (r Rect) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Clamp moves r so that it lies inside a box of the given size with its
// top-left corner at the origin.  If r is larger than the box, it is
// shrunk to fit.
func (r Rect) Clamp(bounds Size) Rect {
	if bounds.IsZero() {
		return r
	}
	r.Width = min(r.Width, bounds.Width)
	r.Height = min(r.Height, bounds.Height)
	r.X = max(0, min(r.X, bounds.Width-r.Width))
	r.Y = max(0, min(r.Y, bounds.Height-r.Height))
	return r
}

// Contains reports whether the point (x, y) lies inside r.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Image converts r to an integer rectangle.  The corners are rounded to
// the nearest pixel, so that adjacent rectangles do not overlap.
func (r Rect) Image() image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	x1 := int(math.Round(r.X + r.Width))
	y1 := int(math.Round(r.Y + r.Height))
	return image.Rect(x0, y0, x1, y1)
}

// toDocument returns the affine map from display space to document space,
// for a page of the given height.
func toDocument(displayScale, pageHeight float64) matrix.Matrix {
	return matrix.Matrix{1 / displayScale, 0, 0, -1 / displayScale, 0, pageHeight}
}

// ToDocumentSpace converts a display-space rectangle into document space.
//
// The result satisfies
//
//	x' = x/s,  w' = w/s,  h' = h/s,  y' = pageHeight - y/s - h'
//
// where s is the display scale.  If displayScale is not positive, the
// zero rectangle is returned.
func ToDocumentSpace(r Rect, displayScale, pageHeight float64) Rect {
	if !(displayScale > 0) {
		return Rect{}
	}
	M := toDocument(displayScale, pageHeight)

	// The bottom-left corner in display space is the origin corner in
	// document space.
	x, y := M.Apply(r.X, r.Y+r.Height)
	return Rect{
		X:      x,
		Y:      y,
		Width:  r.Width / displayScale,
		Height: r.Height / displayScale,
	}
}

// ToDisplaySpace is the inverse of [ToDocumentSpace].
func ToDisplaySpace(r Rect, displayScale, pageHeight float64) Rect {
	if !(displayScale > 0) {
		return Rect{}
	}
	M := toDocument(displayScale, pageHeight).Inv()

	// The top-left corner in document space is the origin corner in
	// display space.
	x, y := M.Apply(r.X, r.Y+r.Height)
	return Rect{
		X:      x,
		Y:      y,
		Width:  r.Width * displayScale,
		Height: r.Height * displayScale,
	}
}

// ToRasterSpace converts a display-space rectangle into the pixel grid of
// an image rendered at rasterScale pixels per document unit.  Both spaces
// have their origin at the top-left, so only the scale changes.
func ToRasterSpace(r Rect, displayScale, rasterScale float64) Rect {
	if !(displayScale > 0) {
		return Rect{}
	}
	f := rasterScale / displayScale
	return Rect{
		X:      r.X * f,
		Y:      r.Y * f,
		Width:  r.Width * f,
		Height: r.Height * f,
	}
}

// FitScale returns the largest uniform scale at which a page of size native
// fits into viewport, after the given padding has been removed from the
// viewport.  Padding is the total amount removed along each axis.
//
// The second return value is false if either the available area or the
// page is empty.  In this case no scale can be computed and the caller
// should wait for a usable viewport.
func FitScale(viewport, padding, native Size) (float64, bool) {
	avail := Size{
		Width:  viewport.Width - padding.Width,
		Height: viewport.Height - padding.Height,
	}
	if avail.IsZero() || native.IsZero() {
		return 0, false
	}
	return min(avail.Width/native.Width, avail.Height/native.Height), true
}
