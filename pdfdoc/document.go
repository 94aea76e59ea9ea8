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

// Package pdfdoc connects the editor to seehuhn.de/go/pdf.
//
// It provides the three document collaborators used by pdfoverlay: a
// loader which parses PDF data and reports page counts and sizes, a page
// renderer, and a writer which embeds images into a page of an existing
// document.
package pdfdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"

	"seehuhn.de/go/pdfoverlay/coord"
	"seehuhn.de/go/pdfoverlay/internal/rasterize"
	"seehuhn.de/go/pdfoverlay/render"
)

// ErrPageOutOfRange is returned when a page number does not exist in the
// document.
var ErrPageOutOfRange = errors.New("page number out of range")

// Options control how documents are opened.
// A nil *Options is equivalent to the zero value.
type Options struct {
	// ReadPassword is called to obtain the password of encrypted
	// documents.  It is called repeatedly, with try counting up from 0,
	// until the correct password is found or the empty string is
	// returned.
	ReadPassword func(ID []byte, try int) string
}

// Loader opens PDF documents.  It implements [render.Loader].
type Loader struct {
	Options *Options
}

// Load implements the [render.Loader] interface.
func (l *Loader) Load(ctx context.Context, data []byte) (render.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Open(data, l.Options)
}

// Document is a PDF document which has been read into memory.
// A Document is safe for concurrent use.
type Document struct {
	data []byte

	mu       sync.Mutex
	r        *pdf.Reader
	numPages int
	geom     map[int]pageGeom
}

// pageGeom is the visible area of a page, together with the clockwise
// rotation (0, 90, 180 or 270 degrees) to apply when showing the page.
type pageGeom struct {
	box    *pdf.Rectangle
	rotate int
}

// Open parses the PDF data.  The data must not be modified while the
// Document is in use.
func Open(data []byte, opt *Options) (*Document, error) {
	var ropt *pdf.ReaderOptions
	if opt != nil && opt.ReadPassword != nil {
		ropt = &pdf.ReaderOptions{ReadPassword: opt.ReadPassword}
	}
	r, err := pdf.NewReader(bytes.NewReader(data), ropt)
	if err != nil {
		return nil, err
	}

	n, err := pagetree.NumPages(r)
	if err != nil {
		r.Close()
		return nil, err
	}
	if n < 1 {
		r.Close()
		return nil, errors.New("document has no pages")
	}

	doc := &Document{
		data:     data,
		r:        r,
		numPages: n,
		geom:     make(map[int]pageGeom),
	}
	return doc, nil
}

// Close releases the resources held by the document.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.r.Close()
}

// Data returns the PDF data the document was read from.
func (d *Document) Data() []byte {
	return d.data
}

// NumPages returns the number of pages in the document.
func (d *Document) NumPages() int {
	return d.numPages
}

// PageSize returns the size of a page in PDF units, as it is shown on
// screen.  Pages are numbered starting from 1.  The size is taken from the
// CropBox, or from the MediaBox if no CropBox is given.  Width and height
// are swapped for pages with a /Rotate value of 90 or 270.
func (d *Document) PageSize(page int) (coord.Size, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, _, err := d.page(page)
	if err != nil {
		return coord.Size{}, err
	}
	w, h := rasterize.VisibleSize(g.box, g.rotate)
	return coord.Size{Width: w, Height: h}, nil
}

// RenderPage renders a page at the given number of pixels per PDF unit.
func (d *Document) RenderPage(ctx context.Context, page int, scale float64) (*image.RGBA, error) {
	if !(scale > 0) {
		return nil, fmt.Errorf("invalid scale %g", scale)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	g, pageDict, err := d.page(page)
	if err != nil {
		return nil, err
	}
	return rasterize.Render(ctx, d.r, pageDict, g.box, g.rotate, scale)
}

// page returns the geometry and the dictionary of a page.
// The caller must hold d.mu.
func (d *Document) page(page int) (pageGeom, pdf.Dict, error) {
	if page < 1 || page > d.numPages {
		return pageGeom{}, nil, fmt.Errorf("page %d of %d: %w", page, d.numPages, ErrPageOutOfRange)
	}

	_, pageDict, err := pagetree.GetPage(d.r, page-1)
	if err != nil {
		return pageGeom{}, nil, err
	}

	g, ok := d.geom[page]
	if !ok {
		box, err := pageBox(d.r, pageDict)
		if err != nil {
			return pageGeom{}, nil, err
		}
		g = pageGeom{box: box, rotate: pageRotation(d.r, pageDict)}
		d.geom[page] = g
	}
	return g, pageDict, nil
}

// pageRotation returns the normalized /Rotate value of a page.
// Pages with a malformed entry are shown unrotated.
func pageRotation(r pdf.Getter, pageDict pdf.Dict) int {
	rot, err := pdf.GetInteger(r, pageDict["Rotate"])
	if err != nil {
		return 0
	}
	return rasterize.NormalizeRotation(int(rot))
}

// pageBox returns the visible area of a page.
func pageBox(r pdf.Getter, pageDict pdf.Dict) (*pdf.Rectangle, error) {
	obj := pageDict["CropBox"]
	if obj == nil {
		obj = pageDict["MediaBox"]
	}
	box, err := pdf.GetRectangle(r, obj)
	if err != nil {
		return nil, err
	}
	if box == nil || !(box.Dx() > 0 && box.Dy() > 0) {
		return nil, &pdf.MalformedFileError{Err: errors.New("missing or empty page box")}
	}
	return box, nil
}
