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
	"image"

	"golang.org/x/image/draw"

	"seehuhn.de/go/pdfoverlay/overlay"
)

// thumbnailSize is the maximum width and height of a preview image.
const thumbnailSize = 256

// thumbnail is the preview image of a placement.  It is released by the
// placement store.
type thumbnail struct {
	s        *Session
	id       overlay.ID
	img      *image.RGBA
	released bool
}

func (s *Session) newThumbnail(src image.Image) *thumbnail {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > thumbnailSize || h > thumbnailSize {
		f := min(float64(thumbnailSize)/float64(w), float64(thumbnailSize)/float64(h))
		w = max(1, int(float64(w)*f+0.5))
		h = max(1, int(float64(h)*f+0.5))
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(img, img.Bounds(), src, b, draw.Src, nil)

	s.mu.Lock()
	s.live++
	s.mu.Unlock()
	return &thumbnail{s: s, img: img}
}

// register makes the thumbnail available under the given placement ID.
func (s *Session) register(id overlay.ID, t *thumbnail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.released {
		return
	}
	t.id = id
	s.previews[id] = t
}

// Release implements the [overlay.Preview] interface.
func (t *thumbnail) Release() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	t.img = nil
	s.live--
	if s.previews[t.id] == t {
		delete(s.previews, t.id)
	}
}
