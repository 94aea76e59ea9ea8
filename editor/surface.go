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

package editor

import (
	"math"
	"sync"

	"seehuhn.de/go/pdfoverlay/coord"
	"seehuhn.de/go/pdfoverlay/overlay"
)

// Default sizes of the interaction surface, in display pixels.
const (
	DefaultMinSize    = 16
	DefaultHandleSize = 12
)

// Surface turns pointer gestures into changes of placement rectangles.
//
// During a drag or resize gesture, the rectangle is tracked by the
// surface and the store is left alone.  The final rectangle is written to
// the store when the gesture ends.  All rectangles are kept inside the
// displayed page.
type Surface struct {
	// MinSize is the minimum width and height of a placement.
	MinSize float64

	// HandleSize is the size of the resize handle in the bottom-right
	// corner of each placement.
	HandleSize float64

	store *overlay.Store

	mu      sync.Mutex
	gesture *gesture
}

type gesture struct {
	id         overlay.ID
	start      coord.Rect
	rect       coord.Rect
	lockAspect bool
}

// NewSurface returns a surface which acts on the placements in store.
func NewSurface(store *overlay.Store) *Surface {
	return &Surface{
		MinSize:    DefaultMinSize,
		HandleSize: DefaultHandleSize,
		store:      store,
	}
}

// HitTest finds the top-most placement under the point (x, y), given in
// display space.  The second return value indicates whether the point is
// on the resize handle of the placement.
func (s *Surface) HitTest(x, y float64) (id overlay.ID, onHandle bool, ok bool) {
	pp := s.store.List()
	for i := len(pp) - 1; i >= 0; i-- {
		r := s.current(pp[i])
		if !r.Contains(x, y) {
			continue
		}
		h := min(s.HandleSize, r.Width/2, r.Height/2)
		onHandle = x >= r.X+r.Width-h && y >= r.Y+r.Height-h
		return pp[i].ID, onHandle, true
	}
	return 0, false, false
}

// current returns the rectangle of p, taking a running gesture into
// account.
func (s *Surface) current(p overlay.Placement) coord.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gesture != nil && s.gesture.id == p.ID {
		return s.gesture.rect
	}
	return p.Rect
}

// Active returns the placement and rectangle of the running gesture.
func (s *Surface) Active() (overlay.ID, coord.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gesture == nil {
		return 0, coord.Rect{}, false
	}
	return s.gesture.id, s.gesture.rect, true
}

// begin starts a gesture for id, unless one is already running.
// The caller must hold s.mu.
func (s *Surface) begin(id overlay.ID) bool {
	if s.gesture != nil {
		if s.gesture.id == id {
			return true
		}
		s.commitLocked()
	}
	p, ok := s.store.Get(id)
	if !ok {
		return false
	}
	s.gesture = &gesture{
		id:         id,
		start:      p.Rect,
		rect:       p.Rect,
		lockAspect: p.LockAspect,
	}
	return true
}

// Drag moves a placement by (dx, dy) display pixels.  The new rectangle
// is returned.
func (s *Surface) Drag(id overlay.ID, dx, dy float64) (coord.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.begin(id) {
		return coord.Rect{}, false
	}
	g := s.gesture
	g.rect.X += dx
	g.rect.Y += dy
	g.rect = g.rect.Clamp(s.store.View().Display)
	return g.rect, true
}

// DragEnd finishes a drag gesture and stores the final position.
func (s *Surface) DragEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked()
}

// ResizeTo changes the size of a placement, keeping its top-left corner
// in place.  If the placement has a locked aspect ratio, the height is
// derived from the width.  The new rectangle is returned.
func (s *Surface) ResizeTo(id overlay.ID, width, height float64) (coord.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.begin(id) {
		return coord.Rect{}, false
	}
	g := s.gesture
	g.rect = resize(g.rect, g.start, width, height, g.lockAspect, s.MinSize, s.store.View().Display)
	return g.rect, true
}

// ResizeEnd finishes a resize gesture and stores the final size.
func (s *Surface) ResizeEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked()
}

// Cancel abandons a running gesture without changing the store.
func (s *Surface) Cancel() {
	s.mu.Lock()
	s.gesture = nil
	s.mu.Unlock()
}

func (s *Surface) cancelFor(id overlay.ID) {
	s.mu.Lock()
	if s.gesture != nil && s.gesture.id == id {
		s.gesture = nil
	}
	s.mu.Unlock()
}

// commitLocked writes the rectangle of the running gesture to the store.
// The caller must hold s.mu.
func (s *Surface) commitLocked() {
	g := s.gesture
	if g == nil {
		return
	}
	s.gesture = nil
	s.store.Update(g.id, overlay.SetRect(g.rect))
}

// resize computes the new rectangle for a resize gesture.  The aspect
// ratio is taken from start, the rectangle at the beginning of the
// gesture.
func resize(r, start coord.Rect, width, height float64, lockAspect bool, minSize float64, bounds coord.Size) coord.Rect {
	maxW, maxH := math.Inf(1), math.Inf(1)
	if !bounds.IsZero() {
		maxW = bounds.Width - r.X
		maxH = bounds.Height - r.Y
	}

	if lockAspect && start.Valid() {
		ratio := start.Height / start.Width
		w := max(width, minSize, minSize/ratio)
		w = min(w, maxW, maxH/ratio)
		r.Width = w
		r.Height = w * ratio
		return r
	}

	r.Width = min(max(width, minSize), maxW)
	r.Height = min(max(height, minSize), maxH)
	return r
}
