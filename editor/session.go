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

// Package editor ties the parts of the overlay editor together.  A
// [Session] holds the open document, the overlay placements and the
// rendered page, and a [Surface] implements the mouse interaction with
// the placements.
package editor

import (
	"context"
	"errors"
	"image"
	"log"
	"sync"

	"seehuhn.de/go/pdfoverlay/coord"
	"seehuhn.de/go/pdfoverlay/export"
	"seehuhn.de/go/pdfoverlay/overlay"
	"seehuhn.de/go/pdfoverlay/pdfdoc"
	"seehuhn.de/go/pdfoverlay/render"
)

var (
	// ErrNoDocument is returned by operations which need an open document.
	ErrNoDocument = errors.New("no document loaded")

	// ErrNoPlacement is returned when a placement ID is not known.
	ErrNoPlacement = errors.New("no such placement")

	errNotDisplayed = errors.New("page has not been displayed")
)

// Config holds the settings of a session.
// A nil *Config selects the multi-overlay editor with default settings.
type Config struct {
	// LockAspect makes new placements keep their aspect ratio when they
	// are resized.
	LockAspect bool

	// Limit is the maximum number of placements.  When the limit is
	// reached, a new image replaces the most recent placement.  Zero means
	// no limit.
	Limit int

	// Padding is the total free space around the page, along each axis of
	// the viewport.  The default is 40x40 pixels.
	Padding coord.Size

	// Document controls how PDF files are opened.
	Document *pdfdoc.Options

	// Export controls the export of page images.
	Export *export.Options

	// Logger receives render errors.  If this is nil, render errors are
	// only returned to the caller.
	Logger *log.Logger

	// OnFrame, if set, is called whenever a newly rendered page becomes
	// visible.  It must not call methods of the session.
	OnFrame func(*render.Frame)
}

// SingleImage is the configuration of the editor variant which places one
// image with a fixed aspect ratio.
var SingleImage = &Config{LockAspect: true, Limit: 1}

var defaultPadding = coord.Size{Width: 40, Height: 40}

// Session is one editing session.  A Session is safe for concurrent use.
type Session struct {
	store    *overlay.Store
	driver   *render.Driver
	pipeline *export.Pipeline
	surface  *Surface

	mu       sync.Mutex
	name     string
	data     []byte
	previews map[overlay.ID]*thumbnail
	live     int
}

// NewSession returns a new session without a document.
func NewSession(cfg *Config) *Session {
	if cfg == nil {
		cfg = &Config{}
	}

	store := &overlay.Store{
		LockAspect: cfg.LockAspect,
		Limit:      cfg.Limit,
	}

	driver := render.NewDriver(&pdfdoc.Loader{Options: cfg.Document})
	driver.Padding = cfg.Padding
	if driver.Padding.IsZero() {
		driver.Padding = defaultPadding
	}
	driver.Views = store
	driver.Logger = cfg.Logger
	driver.OnFrame = cfg.OnFrame

	pipeline := &export.Pipeline{
		Writer:  &pdfdoc.Writer{Options: cfg.Document},
		Encoder: export.StdEncoder{},
		Options: cfg.Export,
	}

	return &Session{
		store:    store,
		driver:   driver,
		pipeline: pipeline,
		surface:  NewSurface(store),
		previews: make(map[overlay.ID]*thumbnail),
	}
}

// OpenDocument replaces the current document.  All placements are removed.
//
// Files which are not PDF documents are rejected with an
// [*overlay.IntakeError], without any change to the session.  If the data
// cannot be parsed, the session is left without a document and a
// [*render.DecodeError] is returned.
func (s *Session) OpenDocument(ctx context.Context, name, mimeType string, data []byte) (*render.Frame, error) {
	err := overlay.CheckDocumentType(name, mimeType)
	if err != nil {
		return nil, err
	}

	s.surface.Cancel()
	s.store.Clear()
	s.mu.Lock()
	s.name = ""
	s.data = nil
	s.mu.Unlock()

	err = s.driver.Load(ctx, data)
	if err != nil {
		return nil, err
	}
	if s.driver.Document() == nil {
		// superseded by a concurrent call
		return nil, nil
	}

	s.mu.Lock()
	s.name = name
	s.data = data
	s.mu.Unlock()

	return s.driver.ShowPage(ctx, 1)
}

// CloseDocument removes the document and all placements.
func (s *Session) CloseDocument() {
	s.surface.Cancel()
	s.driver.Close()
	s.store.Clear()

	s.mu.Lock()
	s.name = ""
	s.data = nil
	s.mu.Unlock()
}

// DocumentName returns the file name of the open document, or the empty
// string if no document is open.
func (s *Session) DocumentName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// State returns the load state of the document.
func (s *Session) State() render.State {
	return s.driver.State()
}

// AddImage adds an overlay image to the page.  Only PNG and JPEG images
// are accepted.
func (s *Session) AddImage(name, mimeType string, data []byte) (overlay.ID, error) {
	img, thumb, err := s.intake(name, mimeType, data)
	if err != nil {
		return 0, err
	}
	id := s.store.Add(img, thumb)
	s.register(id, thumb)
	return id, nil
}

// ReplaceImage exchanges the image of a placement, keeping its position.
func (s *Session) ReplaceImage(id overlay.ID, name, mimeType string, data []byte) error {
	img, thumb, err := s.intake(name, mimeType, data)
	if err != nil {
		return err
	}
	if !s.store.Replace(id, img, thumb) {
		return ErrNoPlacement
	}
	s.register(id, thumb)
	return nil
}

// SetRect moves and resizes a placement.  The rectangle is given in
// display space and is kept inside the displayed page.  For placements
// which keep their aspect ratio, the height is derived from the width.
func (s *Session) SetRect(id overlay.ID, r coord.Rect) bool {
	p, ok := s.store.Get(id)
	if !ok || !r.Valid() {
		return false
	}
	s.surface.cancelFor(id)
	bounds := s.store.View().Display
	pos := r.Clamp(bounds)
	r = resize(pos, p.Rect, r.Width, r.Height, p.LockAspect, s.surface.MinSize, bounds)
	s.store.Update(id, overlay.SetRect(r))
	return true
}

// RemoveImage deletes a placement.
func (s *Session) RemoveImage(id overlay.ID) bool {
	s.surface.cancelFor(id)
	return s.store.Remove(id)
}

func (s *Session) intake(name, mimeType string, data []byte) (*overlay.Image, *thumbnail, error) {
	img, err := overlay.NewImage(name, mimeType, data)
	if err != nil {
		return nil, nil, err
	}
	full, err := overlay.Decode(img)
	if err != nil {
		return nil, nil, &overlay.IntakeError{Name: name, MimeType: mimeType, Err: err}
	}
	return img, s.newThumbnail(full), nil
}

// Placements returns the placements in drawing order.
func (s *Session) Placements() []overlay.Placement {
	return s.store.List()
}

// Preview returns the preview image of a placement, or nil if the ID is
// not known.
func (s *Session) Preview(id overlay.ID) image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.previews[id]
	if t == nil {
		return nil
	}
	return t.img
}

// LivePreviews returns the number of preview images which have not yet
// been released.
func (s *Session) LivePreviews() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// View returns the view of the most recently rendered page.
func (s *Session) View() coord.View {
	return s.store.View()
}

// Frame returns the most recently rendered page, or nil.
func (s *Session) Frame() *render.Frame {
	return s.driver.Frame()
}

// Surface returns the interaction surface of the session.
func (s *Session) Surface() *Surface {
	return s.surface
}

// SetViewport informs the session about the size of the area available
// for showing the page.  The page is rendered again to fit.
func (s *Session) SetViewport(ctx context.Context, viewport coord.Size) (*render.Frame, error) {
	return s.driver.Resize(ctx, viewport)
}

// GoToPage shows the given page.  Page numbers outside the document are
// clamped to the first or last page.
func (s *Session) GoToPage(ctx context.Context, page int) (*render.Frame, error) {
	doc := s.driver.Document()
	if doc == nil {
		return nil, ErrNoDocument
	}
	page = max(1, min(page, doc.NumPages()))
	s.surface.Cancel()
	return s.driver.ShowPage(ctx, page)
}

// NextPage shows the page after the current one.
func (s *Session) NextPage(ctx context.Context) (*render.Frame, error) {
	return s.GoToPage(ctx, s.driver.Page()+1)
}

// PrevPage shows the page before the current one.
func (s *Session) PrevPage(ctx context.Context) (*render.Frame, error) {
	return s.GoToPage(ctx, s.driver.Page()-1)
}

// ExportBusy reports whether an export is running.
func (s *Session) ExportBusy() bool {
	return s.pipeline.Busy()
}

// Export produces the output file for the current page and placements.
// The suggested file name is returned together with the data.
func (s *Session) Export(ctx context.Context, format export.Format) (string, []byte, error) {
	doc := s.driver.Document()
	if doc == nil {
		return "", nil, &export.ExportError{Op: "start", Err: ErrNoDocument}
	}

	s.mu.Lock()
	name := s.name
	data := s.data
	s.mu.Unlock()

	// Export what is on screen: the committed frame fixes both the page
	// and the scale of the placement rectangles.
	frame := s.driver.Frame()
	if frame == nil {
		return "", nil, &export.ExportError{Op: "start", Err: errNotDisplayed}
	}
	view := frame.View
	req := &export.Request{
		Document:   data,
		Source:     doc,
		Page:       view.Page,
		View:       view,
		Placements: s.store.List(),
		Format:     format,
	}
	out, err := s.pipeline.Export(ctx, req)
	if err != nil {
		return "", nil, err
	}
	return export.FileName(name, format, view.Page), out, nil
}
