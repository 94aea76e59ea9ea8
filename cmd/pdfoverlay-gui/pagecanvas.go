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

package main

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	xdraw "golang.org/x/image/draw"

	"seehuhn.de/go/pdfoverlay/coord"
	"seehuhn.de/go/pdfoverlay/editor"
	"seehuhn.de/go/pdfoverlay/overlay"
)

var (
	backgroundColor = color.RGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xFF}
	borderColor     = color.RGBA{R: 0x20, G: 0x60, B: 0xE0, A: 0xFF}
	selectedColor   = color.RGBA{R: 0xE0, G: 0x40, B: 0x20, A: 0xFF}
)

type gestureMode int

const (
	gestureNone gestureMode = iota
	gestureMove
	gestureResize
)

// pageCanvas shows the rendered page with the overlay images on top, and
// turns mouse drags into moves and resizes of the overlays.
//
// Display space is the pixel grid of the raster.  Pointer positions are
// converted from fyne units by the factor pixelScale.
type pageCanvas struct {
	widget.BaseWidget

	session *editor.Session
	raster  *fynecanvas.Raster

	onSelect func(overlay.ID)
	onError  func(error)

	mu         sync.Mutex
	viewport   image.Point
	pixelScale float64
	offset     image.Point // top-left corner of the page in the raster
	selected   overlay.ID

	mode   gestureMode
	active overlay.ID
}

func newPageCanvas(session *editor.Session) *pageCanvas {
	pc := &pageCanvas{
		session:    session,
		pixelScale: 1,
	}
	pc.raster = fynecanvas.NewRaster(pc.draw)
	pc.raster.ScaleMode = fynecanvas.ImageScalePixels
	pc.raster.SetMinSize(fyne.NewSize(400, 300))
	pc.ExtendBaseWidget(pc)
	return pc
}

func (pc *pageCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(pc.raster)
}

// Selected returns the overlay which was last clicked or dragged.
func (pc *pageCanvas) Selected() overlay.ID {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.selected
}

func (pc *pageCanvas) setSelected(id overlay.ID) {
	pc.mu.Lock()
	changed := pc.selected != id
	pc.selected = id
	pc.mu.Unlock()
	if changed && pc.onSelect != nil {
		pc.onSelect(id)
	}
}

// draw is called by fyne whenever the raster needs to be painted.
func (pc *pageCanvas) draw(w, h int) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	size := pc.Size()
	pc.mu.Lock()
	if size.Width > 0 {
		pc.pixelScale = float64(w) / float64(size.Width)
	}
	vp := image.Pt(w, h)
	resized := vp != pc.viewport && w > 0 && h > 0
	pc.viewport = vp
	pc.mu.Unlock()

	if resized {
		// Rendering may take a while, and a newer resize cancels it.
		go func() {
			_, err := pc.session.SetViewport(context.Background(), coord.Size{Width: float64(w), Height: float64(h)})
			if err != nil && pc.onError != nil {
				pc.onError(err)
			}
		}()
	}

	frame := pc.session.Frame()
	if frame == nil {
		return out
	}
	page := frame.Image
	pb := page.Bounds()
	offset := image.Pt((w-pb.Dx())/2, (h-pb.Dy())/2)
	pc.mu.Lock()
	pc.offset = offset
	selected := pc.selected
	pc.mu.Unlock()

	draw.Draw(out, pb.Sub(pb.Min).Add(offset), page, pb.Min, draw.Src)

	activeID, activeRect, active := pc.session.Surface().Active()
	for _, p := range pc.session.Placements() {
		rect := p.Rect
		if active && p.ID == activeID {
			rect = activeRect
		}
		r := rect.Image().Add(offset)
		if preview := pc.session.Preview(p.ID); preview != nil {
			xdraw.ApproxBiLinear.Scale(out, r, preview, preview.Bounds(), draw.Over, nil)
		}
		c := borderColor
		if p.ID == selected {
			c = selectedColor
		}
		drawFrame(out, r, c)
		hs := editor.DefaultHandleSize
		handle := image.Rect(r.Max.X-hs, r.Max.Y-hs, r.Max.X, r.Max.Y)
		draw.Draw(out, handle.Intersect(r), image.NewUniform(c), image.Point{}, draw.Src)
	}
	return out
}

func drawFrame(dst draw.Image, r image.Rectangle, c color.Color) {
	u := image.NewUniform(c)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), u, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
}

// toDisplay converts a position in fyne units to display space.
func (pc *pageCanvas) toDisplay(pos fyne.Position) (float64, float64) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	x := float64(pos.X)*pc.pixelScale - float64(pc.offset.X)
	y := float64(pos.Y)*pc.pixelScale - float64(pc.offset.Y)
	return x, y
}

func (pc *pageCanvas) Tapped(ev *fyne.PointEvent) {
	x, y := pc.toDisplay(ev.Position)
	id, _, _ := pc.session.Surface().HitTest(x, y)
	pc.setSelected(id)
	pc.Refresh()
}

func (pc *pageCanvas) Dragged(ev *fyne.DragEvent) {
	surface := pc.session.Surface()

	pc.mu.Lock()
	mode := pc.mode
	id := pc.active
	f := pc.pixelScale
	pc.mu.Unlock()

	if mode == gestureNone {
		start := ev.Position.Subtract(ev.Dragged)
		x, y := pc.toDisplay(start)
		hit, onHandle, ok := surface.HitTest(x, y)
		if !ok {
			return
		}
		mode = gestureMove
		if onHandle {
			mode = gestureResize
		}
		id = hit
		pc.mu.Lock()
		pc.mode = mode
		pc.active = id
		pc.mu.Unlock()
		pc.setSelected(id)
	}

	dx := float64(ev.Dragged.DX) * f
	dy := float64(ev.Dragged.DY) * f
	switch mode {
	case gestureMove:
		surface.Drag(id, dx, dy)
	case gestureResize:
		_, r, ok := surface.Active()
		if !ok {
			p, found := findPlacement(pc.session.Placements(), id)
			if !found {
				return
			}
			r = p.Rect
		}
		surface.ResizeTo(id, r.Width+dx, r.Height+dy)
	}
	pc.Refresh()
}

func (pc *pageCanvas) DragEnd() {
	pc.mu.Lock()
	mode := pc.mode
	pc.mode = gestureNone
	pc.active = 0
	pc.mu.Unlock()

	surface := pc.session.Surface()
	switch mode {
	case gestureMove:
		surface.DragEnd()
	case gestureResize:
		surface.ResizeEnd()
	}
	pc.Refresh()
}

func findPlacement(pp []overlay.Placement, id overlay.ID) (overlay.Placement, bool) {
	for _, p := range pp {
		if p.ID == id {
			return p, true
		}
	}
	return overlay.Placement{}, false
}
