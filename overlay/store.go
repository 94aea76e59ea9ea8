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

// Package overlay keeps track of the images placed on the active page.
//
// Placements are kept in display space, in the order in which they were
// added.  This order is also the drawing order on export: later
// placements are drawn on top of earlier ones.
package overlay

import (
	"sync"

	"seehuhn.de/go/pdfoverlay/coord"
)

// Layout of newly added placements, in display pixels.
const (
	initialOffset = 50
	stackOffset   = 20
	initialBox    = 150
)

// ID identifies a placement within a [Store].  IDs are never reused.
type ID uint64

// Preview is a resource which is associated with a placement for as long
// as the placement exists, for example a thumbnail shown in a user
// interface.  The store calls Release exactly once, when the placement is
// removed, when its image is replaced, or when the store is cleared.
type Preview interface {
	Release()
}

// Placement is one overlay image on the page.
type Placement struct {
	ID    ID
	Image *Image

	// Rect is the position of the image in display space.
	Rect coord.Rect

	// LockAspect indicates that resizing must keep the aspect ratio of
	// Rect.
	LockAspect bool
}

// Patch describes a partial update of a placement rectangle.
// Nil fields are left unchanged.
type Patch struct {
	X, Y, Width, Height *float64
}

// Move returns a patch which changes the position only.
func Move(x, y float64) Patch {
	return Patch{X: &x, Y: &y}
}

// Resize returns a patch which changes the size only.
func Resize(width, height float64) Patch {
	return Patch{Width: &width, Height: &height}
}

// SetRect returns a patch which replaces the whole rectangle.
func SetRect(r coord.Rect) Patch {
	return Patch{X: &r.X, Y: &r.Y, Width: &r.Width, Height: &r.Height}
}

type entry struct {
	Placement
	preview *onceRelease
}

// Store holds the placements for the active document, together with the
// current view.  A Store is safe for concurrent use.
type Store struct {
	// LockAspect is used for newly added placements.
	LockAspect bool

	// Limit is the maximum number of placements.  If the limit is reached,
	// Add replaces the most recently added placement.  Zero means no limit.
	Limit int

	mu      sync.Mutex
	nextID  ID
	entries []*entry
	view    coord.View
}

// Add adds a new placement for img and returns its ID.
//
// The new placement is positioned a little below and to the right of the
// previous one, so that placements never start exactly on top of each
// other.  The image is scaled to fit a 150x150 pixel box, keeping its
// aspect ratio.  Preview may be nil.
func (s *Store) Add(img *Image, preview Preview) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Limit > 0 && len(s.entries) >= s.Limit {
		last := s.entries[len(s.entries)-1]
		s.entries = s.entries[:len(s.entries)-1]
		last.preview.Release()
	}

	s.nextID++
	id := s.nextID

	n := float64(len(s.entries))
	w, h := fitBox(img.Width, img.Height, initialBox)
	e := &entry{
		Placement: Placement{
			ID:    id,
			Image: img,
			Rect: coord.Rect{
				X:      initialOffset + n*stackOffset,
				Y:      initialOffset + n*stackOffset,
				Width:  w,
				Height: h,
			},
			LockAspect: s.LockAspect,
		},
		preview: newOnceRelease(preview),
	}
	s.entries = append(s.entries, e)
	return id
}

func fitBox(width, height int, box float64) (float64, float64) {
	if width <= 0 || height <= 0 {
		return box, box
	}
	w, h := float64(width), float64(height)
	f := min(box/w, box/h)
	return w * f, h * f
}

// Update merges p into the rectangle of the placement with the given ID.
// Unknown IDs are ignored, since a placement may be removed while a user
// interface still holds its ID.  Sizes which are not positive are
// ignored, and negative positions are stored as zero.
func (s *Store) Update(id ID, p Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.find(id)
	if e == nil {
		return
	}
	r := &e.Rect
	if p.X != nil {
		r.X = max(0, *p.X)
	}
	if p.Y != nil {
		r.Y = max(0, *p.Y)
	}
	if p.Width != nil && *p.Width > 0 {
		r.Width = *p.Width
	}
	if p.Height != nil && *p.Height > 0 {
		r.Height = *p.Height
	}
}

// Replace changes the image of an existing placement, keeping its
// position.  The height is adjusted to the aspect ratio of the new image.
// The preview of the old image is released.
func (s *Store) Replace(id ID, img *Image, preview Preview) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.find(id)
	if e == nil {
		newOnceRelease(preview).Release()
		return false
	}
	e.preview.Release()
	e.Image = img
	e.preview = newOnceRelease(preview)
	if img.Width > 0 && img.Height > 0 {
		e.Rect.Height = e.Rect.Width * float64(img.Height) / float64(img.Width)
	}
	return true
}

// Remove deletes a placement and releases its preview.
// The return value indicates whether the ID was found.
func (s *Store) Remove(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			e.preview.Release()
			return true
		}
	}
	return false
}

// Clear removes all placements and resets the view.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		e.preview.Release()
	}
	s.entries = nil
	s.view = coord.View{}
}

// Get returns a copy of the placement with the given ID.
func (s *Store) Get(id ID) (Placement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.find(id)
	if e == nil {
		return Placement{}, false
	}
	return e.Placement, true
}

// List returns copies of all placements, in insertion order.
func (s *Store) List() []Placement {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]Placement, len(s.entries))
	for i, e := range s.entries {
		res[i] = e.Placement
	}
	return res
}

// Len returns the number of placements.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// View returns the current view.
func (s *Store) View() coord.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetView replaces the current view.
//
// Placement rectangles are kept in display space.  If v shows the same
// page as the current view at a different scale, all rectangles are
// scaled by the ratio of the two scales, so that every placement keeps
// its position on the page.
func (s *Store) SetView(v coord.View) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.view
	if old.Page == v.Page && old.Scale > 0 && v.Scale > 0 && old.Scale != v.Scale {
		f := v.Scale / old.Scale
		for _, e := range s.entries {
			e.Rect = coord.Rect{
				X:      e.Rect.X * f,
				Y:      e.Rect.Y * f,
				Width:  e.Rect.Width * f,
				Height: e.Rect.Height * f,
			}
		}
	}
	s.view = v
}

func (s *Store) find(id ID) *entry {
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// onceRelease makes sure that a preview is released at most once.
type onceRelease struct {
	once sync.Once
	p    Preview
}

func newOnceRelease(p Preview) *onceRelease {
	return &onceRelease{p: p}
}

func (o *onceRelease) Release() {
	o.once.Do(func() {
		if o.p != nil {
			o.p.Release()
		}
	})
}
