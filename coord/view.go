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

package coord

// View describes how the active page is shown on screen.
//
// Views are values.  They are always replaced as a whole, so that the
// scale and the two page sizes never disagree.
type View struct {
	// Page is the active page, starting at 1.
	Page int

	// PageCount is the number of pages in the document.
	PageCount int

	// Scale is the number of display pixels per document unit.
	Scale float64

	// Native is the page size in document units.
	Native Size

	// Display is the size of the rendered page in display pixels.
	// This is always Native scaled by Scale.
	Display Size
}

// NewView returns the view for showing page of a document with pageCount
// pages, where the page has the given native size and is shown at scale.
func NewView(page, pageCount int, native Size, scale float64) View {
	return View{
		Page:      page,
		PageCount: pageCount,
		Scale:     scale,
		Native:    native,
		Display:   native.Scale(scale),
	}
}

// IsZero reports whether no page is being shown.
func (v View) IsZero() bool {
	return v.Page == 0 || !(v.Scale > 0)
}

// ClampPage limits n to the valid page range of the view.
// If the document has no pages, 0 is returned.
func (v View) ClampPage(n int) int {
	if v.PageCount < 1 {
		return 0
	}
	return max(1, min(n, v.PageCount))
}
