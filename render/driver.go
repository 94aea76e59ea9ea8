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

// Package render keeps the on-screen image of the active page up to date.
//
// A [Driver] loads a document through a [Loader] and renders pages through
// the resulting [Document].  Every page change or viewport change starts a
// new render request.  Only the most recent request may update the
// visible page: results of older requests are dropped, and their contexts
// are cancelled.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"sync"

	"seehuhn.de/go/pdfoverlay/coord"
)

// Loader parses document data.
type Loader interface {
	Load(ctx context.Context, data []byte) (Document, error)
}

// Document is a loaded document.  Pages are numbered starting from 1.
type Document interface {
	NumPages() int
	PageSize(page int) (coord.Size, error)
	RenderPage(ctx context.Context, page int, scale float64) (*image.RGBA, error)
}

// State describes the life cycle of a Driver.
type State int

// These are the possible states of a Driver.
const (
	Idle State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Frame is a rendered page, together with the view it was rendered for.
type Frame struct {
	Page  int
	Image *image.RGBA
	View  coord.View
}

// ViewSetter receives the view of every committed frame.
// [*overlay.Store] implements this interface.
type ViewSetter interface {
	SetView(coord.View)
}

// Driver renders the active page of a document into the viewport.
// A Driver is safe for concurrent use.
type Driver struct {
	// Padding is the total space along each axis of the viewport which is
	// left free around the page.
	Padding coord.Size

	// Views, if set, is updated whenever a new frame is committed.
	Views ViewSetter

	// OnFrame, if set, is called whenever a new frame is committed.
	// It is called with the driver's lock held, and must not call
	// methods of the driver.
	OnFrame func(*Frame)

	// Logger, if set, receives render errors.
	Logger *log.Logger

	loader Loader

	mu       sync.Mutex
	state    State
	doc      Document
	gen      uint64 // document generation, incremented on every Load and Close
	page     int
	viewport coord.Size

	seq       uint64 // number of the most recent render request
	cancel    context.CancelFunc
	rendering bool
	frame     *Frame
}

// NewDriver returns a Driver which loads documents using loader.
func NewDriver(loader Loader) *Driver {
	return &Driver{loader: loader}
}

// State returns the current load state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Rendering reports whether a render request is in flight.
func (d *Driver) Rendering() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rendering
}

// Document returns the loaded document, or nil if no document is ready.
func (d *Driver) Document() Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Ready {
		return nil
	}
	return d.doc
}

// Frame returns the most recently committed frame, or nil.
func (d *Driver) Frame() *Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frame
}

// Page returns the requested page.
func (d *Driver) Page() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page
}

// Load parses a new document, replacing the current one.  On success the
// driver is Ready with page 1 selected, but nothing has been rendered yet.
// On failure the driver is in the Failed state and a [*DecodeError] is
// returned.  If the load is superseded by another Load or by Close, the
// new document is discarded and nil is returned.
func (d *Driver) Load(ctx context.Context, data []byte) error {
	d.mu.Lock()
	d.stopLocked()
	d.gen++
	gen := d.gen
	d.state = Loading
	old := d.doc
	d.doc = nil
	d.page = 0
	d.frame = nil
	d.mu.Unlock()

	closeDoc(old)
	doc, err := d.loader.Load(ctx, data)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		if err == nil {
			closeDoc(doc)
		}
		return nil
	}
	if err != nil {
		d.state = Failed
		return &DecodeError{Err: err}
	}
	if doc.NumPages() < 1 {
		closeDoc(doc)
		d.state = Failed
		return &DecodeError{Err: errors.New("document has no pages")}
	}
	d.state = Ready
	d.doc = doc
	d.page = 1
	return nil
}

// Close discards the current document and cancels any render in flight.
func (d *Driver) Close() {
	d.mu.Lock()
	d.stopLocked()
	d.gen++
	d.state = Idle
	old := d.doc
	d.doc = nil
	d.page = 0
	d.frame = nil
	d.mu.Unlock()

	closeDoc(old)
}

// closeDoc releases a document, if it holds resources.
func closeDoc(doc Document) {
	if c, ok := doc.(io.Closer); ok {
		c.Close()
	}
}

// stopLocked cancels the render in flight.  The caller must hold d.mu.
func (d *Driver) stopLocked() {
	d.seq++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.rendering = false
}

// ShowPage selects a page and renders it.
//
// The returned frame is nil if the request was superseded by a newer one
// before it completed, or if the viewport is still empty.  Neither case is
// an error.
func (d *Driver) ShowPage(ctx context.Context, page int) (*Frame, error) {
	d.mu.Lock()
	d.page = page
	d.mu.Unlock()
	return d.Refresh(ctx)
}

// Resize sets the size of the viewport and renders the current page to
// fit.  The return values are as for [Driver.ShowPage].
func (d *Driver) Resize(ctx context.Context, viewport coord.Size) (*Frame, error) {
	d.mu.Lock()
	d.viewport = viewport
	d.mu.Unlock()
	return d.Refresh(ctx)
}

// Refresh renders the current page into the current viewport.
// The return values are as for [Driver.ShowPage].
func (d *Driver) Refresh(ctx context.Context) (*Frame, error) {
	d.mu.Lock()
	if d.state != Ready {
		d.mu.Unlock()
		return nil, nil
	}
	doc := d.doc
	page := d.page
	viewport := d.viewport

	d.stopLocked()
	seq := d.seq
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.rendering = true
	d.mu.Unlock()

	defer cancel()

	frame, err := d.render(ctx, doc, page, viewport)

	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.seq {
		// superseded, not an error
		return nil, nil
	}
	d.rendering = false
	d.cancel = nil
	if errors.Is(err, context.Canceled) {
		// abandoned by the caller
		return nil, nil
	}
	if err != nil {
		rerr := &RenderError{Page: page, Err: err}
		if d.Logger != nil {
			d.Logger.Print(rerr)
		}
		return nil, rerr
	}
	if frame == nil {
		return nil, nil
	}

	d.frame = frame
	if d.Views != nil {
		d.Views.SetView(frame.View)
	}
	if d.OnFrame != nil {
		d.OnFrame(frame)
	}
	return frame, nil
}

// render produces the frame for one request.  A nil frame without error
// means that the viewport is too small to show the page.
func (d *Driver) render(ctx context.Context, doc Document, page int, viewport coord.Size) (*Frame, error) {
	n := doc.NumPages()
	if page < 1 || page > n {
		return nil, fmt.Errorf("page %d out of range 1-%d", page, n)
	}

	native, err := doc.PageSize(page)
	if err != nil {
		return nil, err
	}
	scale, ok := coord.FitScale(viewport, d.Padding, native)
	if !ok {
		return nil, nil
	}

	img, err := doc.RenderPage(ctx, page, scale)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Page:  page,
		Image: img,
		View:  coord.NewView(page, n, native, scale),
	}, nil
}
