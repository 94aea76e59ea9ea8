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

// Package export produces the final output of an editing session: either a
// copy of the PDF document with the overlay images embedded into the
// active page, or an image of the active page with the overlays drawn on
// top.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"

	"seehuhn.de/go/pdfoverlay/coord"
	"seehuhn.de/go/pdfoverlay/overlay"
	"seehuhn.de/go/pdfoverlay/render"
)

var errNotRaster = errors.New("not a raster format")

// Writer embeds an image into a page of a PDF document.  The page index
// starts at 0, and rect is given in PDF units relative to the bottom-left
// corner of the page.  Implementations must not modify doc.
// [*pdfdoc.Writer] implements this interface.
type Writer interface {
	EmbedImage(doc []byte, pageIndex int, img []byte, kind overlay.Format, rect coord.Rect) ([]byte, error)
}

// BatchWriter is implemented by writers which can embed several images
// into a page in one pass.  If the Writer of a [Pipeline] implements this
// interface, document exports parse and write the PDF file only once.
type BatchWriter interface {
	EmbedImages(doc []byte, pageIndex int, stamps []overlay.Stamp) ([]byte, error)
}

// Options control the export.
// A nil *Options is equivalent to the default settings.
type Options struct {
	// RasterScale is the number of pixels per PDF unit in exported page
	// images.  The default is 2, which gives 144 dots per inch.
	RasterScale float64

	// JPEGQuality is the quality used for JPEG output, between 1 and 100.
	// The default is 92.
	JPEGQuality int
}

const (
	defaultRasterScale = 2.0
	defaultJPEGQuality = 92
)

func (opt *Options) rasterScale() float64 {
	if opt == nil || !(opt.RasterScale > 0) {
		return defaultRasterScale
	}
	return opt.RasterScale
}

func (opt *Options) jpegQuality() int {
	if opt == nil || opt.JPEGQuality < 1 || opt.JPEGQuality > 100 {
		return defaultJPEGQuality
	}
	return opt.JPEGQuality
}

// Request describes one export.
type Request struct {
	// Document is the PDF data of the source document.  It is never
	// modified.
	Document []byte

	// Source is the loaded form of Document.
	Source render.Document

	// Page is the active page, starting at 1.
	Page int

	// View is the view in which the placement rectangles are given.
	View coord.View

	// Placements are drawn in the order given, so that later placements
	// end up on top.
	Placements []overlay.Placement

	Format Format
}

// Pipeline runs exports.  Only one export can run at a time.
type Pipeline struct {
	Writer  Writer
	Encoder Encoder
	Options *Options

	busy atomic.Bool
}

// Busy reports whether an export is currently running.
func (p *Pipeline) Busy() bool {
	return p.busy.Load()
}

// Export runs the export described by req and returns the resulting file.
// If an export is already running, an [*ExportError] wrapping [ErrBusy]
// is returned immediately.
func (p *Pipeline) Export(ctx context.Context, req *Request) ([]byte, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, &ExportError{Op: "start", Err: ErrBusy}
	}
	defer p.busy.Store(false)

	if req.Source == nil {
		return nil, &ExportError{Op: "start", Err: errors.New("no document loaded")}
	}
	n := req.Source.NumPages()
	if req.Page < 1 || req.Page > n {
		return nil, &ExportError{
			Op:  "start",
			Err: fmt.Errorf("page %d out of range 1-%d", req.Page, n),
		}
	}
	if !(req.View.Scale > 0) {
		return nil, &ExportError{Op: "start", Err: errors.New("page has not been displayed")}
	}

	// All overlays are decoded before any output is produced.
	images := make([]image.Image, len(req.Placements))
	for i, pl := range req.Placements {
		img, err := overlay.Decode(pl.Image)
		if err != nil {
			return nil, &ExportError{
				Op:  "decode",
				Err: fmt.Errorf("%s: %w", pl.Image.Name, err),
			}
		}
		images[i] = img
	}

	switch req.Format {
	case Document:
		return p.exportDocument(ctx, req)
	case JPEG, PNG:
		return p.exportRaster(ctx, req, images)
	default:
		return nil, &ExportError{Op: "start", Err: fmt.Errorf("unsupported format %s", req.Format)}
	}
}

func (p *Pipeline) exportDocument(ctx context.Context, req *Request) ([]byte, error) {
	if p.Writer == nil {
		return nil, &ExportError{Op: "embed", Err: errors.New("no document writer")}
	}

	// The page height is looked up again, so that the conversion always
	// uses the page which is being written.
	native, err := req.Source.PageSize(req.Page)
	if err != nil {
		return nil, &ExportError{Op: "page size", Err: err}
	}

	if len(req.Placements) == 0 {
		return bytes.Clone(req.Document), nil
	}

	stamps := make([]overlay.Stamp, len(req.Placements))
	for i, pl := range req.Placements {
		stamps[i] = overlay.Stamp{
			Data: pl.Image.Data,
			Kind: pl.Image.Format,
			Rect: coord.ToDocumentSpace(pl.Rect, req.View.Scale, native.Height),
		}
	}

	if bw, ok := p.Writer.(BatchWriter); ok {
		if err := ctx.Err(); err != nil {
			return nil, &ExportError{Op: "embed", Err: err}
		}
		doc, err := bw.EmbedImages(req.Document, req.Page-1, stamps)
		if err != nil {
			return nil, &ExportError{Op: "embed", Err: err}
		}
		return doc, nil
	}

	doc := req.Document
	for i, s := range stamps {
		if err := ctx.Err(); err != nil {
			return nil, &ExportError{Op: "embed", Err: err}
		}
		doc, err = p.Writer.EmbedImage(doc, req.Page-1, s.Data, s.Kind, s.Rect)
		if err != nil {
			return nil, &ExportError{
				Op:  "embed",
				Err: fmt.Errorf("%s: %w", req.Placements[i].Image.Name, err),
			}
		}
	}
	return doc, nil
}

func (p *Pipeline) exportRaster(ctx context.Context, req *Request, images []image.Image) ([]byte, error) {
	scale := p.Options.rasterScale()
	page, err := req.Source.RenderPage(ctx, req.Page, scale)
	if err != nil {
		return nil, &ExportError{Op: "render", Err: err}
	}

	// Draw onto a copy, the renderer may cache its result.
	surface := image.NewRGBA(page.Bounds())
	draw.Draw(surface, surface.Bounds(), page, page.Bounds().Min, draw.Src)

	Composite(surface, req.Placements, images, req.View.Scale, scale)

	enc := p.Encoder
	if enc == nil {
		enc = StdEncoder{}
	}
	buf := &bytes.Buffer{}
	err = enc.Encode(buf, surface, req.Format, p.Options.jpegQuality())
	if err != nil {
		return nil, &ExportError{Op: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// Composite draws the overlay images onto dst, in order.  The placement
// rectangles are given in display space at displayScale, dst is rendered
// at rasterScale pixels per PDF unit.
func Composite(dst draw.Image, placements []overlay.Placement, images []image.Image, displayScale, rasterScale float64) {
	origin := dst.Bounds().Min
	for i, pl := range placements {
		r := coord.ToRasterSpace(pl.Rect, displayScale, rasterScale).Image().Add(origin)
		if r.Empty() {
			continue
		}
		src := images[i]
		xdraw.CatmullRom.Scale(dst, r, src, src.Bounds(), draw.Over, nil)
	}
}
