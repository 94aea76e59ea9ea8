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
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/pdfoverlay/coord"
	"seehuhn.de/go/pdfoverlay/overlay"
)

func newTestSurface(t *testing.T, lockAspect bool) (*Surface, *overlay.Store) {
	t.Helper()
	store := &overlay.Store{LockAspect: lockAspect}
	store.SetView(coord.NewView(1, 1, coord.Size{Width: 400, Height: 300}, 1))
	return NewSurface(store), store
}

func addTestImage(t *testing.T, store *overlay.Store, w, h int) overlay.ID {
	t.Helper()
	img, err := overlay.NewImage("test.png", overlay.MimePNG, testPNG(t, w, h))
	if err != nil {
		t.Fatal(err)
	}
	return store.Add(img, nil)
}

func TestDrag(t *testing.T) {
	surface, store := newTestSurface(t, false)
	id := addTestImage(t, store, 10, 10)

	r, ok := surface.Drag(id, 30, 10)
	if !ok {
		t.Fatal("drag failed")
	}
	r, _ = surface.Drag(id, 1000, -5)
	want := coord.Rect{X: 250, Y: 55, Width: 150, Height: 150}
	if d := cmp.Diff(want, r); d != "" {
		t.Errorf("dragged rect (-want +got):\n%s", d)
	}

	// the store is only updated at the end of the gesture
	p, _ := store.Get(id)
	if p.Rect.X != 50 {
		t.Errorf("store updated during drag: %v", p.Rect)
	}
	surface.DragEnd()
	p, _ = store.Get(id)
	if d := cmp.Diff(want, p.Rect); d != "" {
		t.Errorf("stored rect (-want +got):\n%s", d)
	}
	if _, _, active := surface.Active(); active {
		t.Error("gesture still active")
	}

	r, _ = surface.Drag(id, -1000, -1000)
	surface.DragEnd()
	if r.X != 0 || r.Y != 0 {
		t.Errorf("not clamped at the top-left: %v", r)
	}
}

func TestResizeLocked(t *testing.T) {
	surface, store := newTestSurface(t, true)
	id := addTestImage(t, store, 20, 10) // 150x75 at (50, 50)

	cases := []struct {
		w, h float64
		want coord.Rect
	}{
		{300, 0, coord.Rect{X: 50, Y: 50, Width: 300, Height: 150}},
		{1, 1, coord.Rect{X: 50, Y: 50, Width: 32, Height: 16}},
		{2000, 10, coord.Rect{X: 50, Y: 50, Width: 350, Height: 175}},
	}
	for _, c := range cases {
		r, ok := surface.ResizeTo(id, c.w, c.h)
		if !ok {
			t.Fatal("resize failed")
		}
		if d := cmp.Diff(c.want, r); d != "" {
			t.Errorf("ResizeTo(%g, %g) (-want +got):\n%s", c.w, c.h, d)
		}
	}
	surface.ResizeEnd()
	p, _ := store.Get(id)
	if d := cmp.Diff(cases[2].want, p.Rect); d != "" {
		t.Errorf("stored rect (-want +got):\n%s", d)
	}
}

func TestResizeFree(t *testing.T) {
	surface, store := newTestSurface(t, false)
	id := addTestImage(t, store, 20, 10)

	r, _ := surface.ResizeTo(id, 5, 1000)
	want := coord.Rect{X: 50, Y: 50, Width: DefaultMinSize, Height: 250}
	if d := cmp.Diff(want, r); d != "" {
		t.Errorf("resized rect (-want +got):\n%s", d)
	}
	surface.Cancel()
	p, _ := store.Get(id)
	if p.Rect.Width != 150 {
		t.Errorf("cancelled gesture changed the store: %v", p.Rect)
	}
}

func TestHitTest(t *testing.T) {
	surface, store := newTestSurface(t, false)
	a := addTestImage(t, store, 10, 10) // (50, 50)
	b := addTestImage(t, store, 10, 10) // (70, 70)

	type hit struct {
		ID     overlay.ID
		Handle bool
		OK     bool
	}
	cases := []struct {
		x, y float64
		want hit
	}{
		{60, 60, hit{a, false, true}},
		{100, 100, hit{b, false, true}},
		{219, 219, hit{b, true, true}},
		{199, 199, hit{b, false, true}},
		{10, 10, hit{}},
	}
	for _, c := range cases {
		id, handle, ok := surface.HitTest(c.x, c.y)
		if d := cmp.Diff(c.want, hit{id, handle, ok}); d != "" {
			t.Errorf("HitTest(%g, %g) (-want +got):\n%s", c.x, c.y, d)
		}
	}

	// a running gesture moves the hit area
	surface.Drag(a, 200, 0)
	if id, _, _ := surface.HitTest(60, 60); id != 0 {
		t.Errorf("hit %d at the old position", id)
	}
	if id, _, _ := surface.HitTest(260, 60); id != a {
		t.Errorf("hit %d at the new position", id)
	}
}

func TestGestureUnknownID(t *testing.T) {
	surface, _ := newTestSurface(t, false)
	if _, ok := surface.Drag(42, 1, 1); ok {
		t.Error("drag of unknown placement succeeded")
	}
	if _, ok := surface.ResizeTo(42, 10, 10); ok {
		t.Error("resize of unknown placement succeeded")
	}
}
