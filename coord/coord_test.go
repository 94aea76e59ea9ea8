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

import (
	"fmt"
	"image"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestFitScaleLetter(t *testing.T) {
	letter := Size{Width: 612, Height: 792}
	s, ok := FitScale(Size{Width: 800, Height: 600}, Size{Width: 40, Height: 40}, letter)
	if !ok {
		t.Fatal("no scale for non-empty viewport")
	}
	want := min(760.0/612, 560.0/792)
	if math.Abs(s-want) > 1e-12 {
		t.Errorf("scale = %g, want %g", s, want)
	}
	if math.Abs(s-0.7071) > 1e-4 {
		t.Errorf("scale = %g, want approximately 0.7071", s)
	}
}

func TestFitScaleEmpty(t *testing.T) {
	native := Size{Width: 612, Height: 792}
	cases := []struct {
		viewport, padding Size
		native            Size
	}{
		{Size{}, Size{}, native},
		{Size{Width: 800}, Size{}, native},
		{Size{Width: 40, Height: 600}, Size{Width: 40, Height: 40}, native},
		{Size{Width: 800, Height: 600}, Size{}, Size{}},
		{Size{Width: 800, Height: 600}, Size{}, Size{Width: 612}},
	}
	for i, c := range cases {
		s, ok := FitScale(c.viewport, c.padding, c.native)
		if ok {
			t.Errorf("%d: got scale %g for empty area", i, s)
		}
	}
}

func TestDocumentScenario(t *testing.T) {
	s, _ := FitScale(Size{Width: 800, Height: 600}, Size{Width: 40, Height: 40}, Size{Width: 612, Height: 792})
	r := Rect{X: 50, Y: 50, Width: 150, Height: 150}

	got := ToDocumentSpace(r, s, 792)
	want := Rect{X: 70.71, Y: 509.14, Width: 212.14, Height: 212.14}
	if d := cmp.Diff(want, got, cmpopts.EquateApprox(0, 0.01)); d != "" {
		t.Error(d)
	}
}

func TestDocumentFlip(t *testing.T) {
	// A rectangle touching the top of the display touches the top of the
	// page in document space.
	got := ToDocumentSpace(Rect{X: 0, Y: 0, Width: 10, Height: 20}, 2, 100)
	want := Rect{X: 0, Y: 90, Width: 5, Height: 10}
	if d := cmp.Diff(want, got, approx); d != "" {
		t.Error(d)
	}
}

func TestRoundTrip(t *testing.T) {
	rects := []Rect{
		{X: 0, Y: 0, Width: 1, Height: 1},
		{X: 50, Y: 50, Width: 150, Height: 150},
		{X: 12.5, Y: 300.25, Width: 0.5, Height: 99.75},
		{X: 431, Y: 7, Width: 1000, Height: 3},
	}
	scales := []float64{0.1, 0.7071067811865476, 1, 1.5, 4}
	heights := []float64{100, 792, 1190.55}
	for _, r := range rects {
		for _, s := range scales {
			for _, h := range heights {
				t.Run(fmt.Sprintf("%v@%g/%g", r, s, h), func(t *testing.T) {
					back := ToDisplaySpace(ToDocumentSpace(r, s, h), s, h)
					if d := cmp.Diff(r, back, cmpopts.EquateApprox(0, 1e-9)); d != "" {
						t.Error(d)
					}
				})
			}
		}
	}
}

func TestRoundTripWithinOnePixel(t *testing.T) {
	r := Rect{X: 17, Y: 123, Width: 64, Height: 48}
	s := 0.7071
	doc := ToDocumentSpace(r, s, 792)
	back := ToDisplaySpace(doc, s, 792).Image()
	want := r.Image()
	for _, d := range []int{
		back.Min.X - want.Min.X, back.Min.Y - want.Min.Y,
		back.Max.X - want.Max.X, back.Max.Y - want.Max.Y,
	} {
		if d < -1 || d > 1 {
			t.Fatalf("re-imported placement %v, want %v", back, want)
		}
	}
}

func TestRasterSpace(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 30, Height: 40}
	got := ToRasterSpace(r, 0.5, 2)
	want := Rect{X: 40, Y: 80, Width: 120, Height: 160}
	if d := cmp.Diff(want, got, approx); d != "" {
		t.Error(d)
	}

	// no flip, so the identity ratio keeps the rectangle
	if d := cmp.Diff(r, ToRasterSpace(r, 1.25, 1.25), approx); d != "" {
		t.Error(d)
	}
}

func TestZeroScale(t *testing.T) {
	r := Rect{X: 1, Y: 2, Width: 3, Height: 4}
	for _, s := range []float64{0, -1, math.NaN()} {
		if got := ToDocumentSpace(r, s, 100); got != (Rect{}) {
			t.Errorf("ToDocumentSpace(scale=%g) = %v", s, got)
		}
		if got := ToDisplaySpace(r, s, 100); got != (Rect{}) {
			t.Errorf("ToDisplaySpace(scale=%g) = %v", s, got)
		}
		if got := ToRasterSpace(r, s, 2); got != (Rect{}) {
			t.Errorf("ToRasterSpace(scale=%g) = %v", s, got)
		}
	}
}

func TestClamp(t *testing.T) {
	bounds := Size{Width: 100, Height: 50}
	cases := []struct {
		in, out Rect
	}{
		{Rect{X: 10, Y: 10, Width: 20, Height: 20}, Rect{X: 10, Y: 10, Width: 20, Height: 20}},
		{Rect{X: -5, Y: -7, Width: 20, Height: 20}, Rect{X: 0, Y: 0, Width: 20, Height: 20}},
		{Rect{X: 95, Y: 45, Width: 20, Height: 20}, Rect{X: 80, Y: 30, Width: 20, Height: 20}},
		{Rect{X: 5, Y: 5, Width: 200, Height: 80}, Rect{X: 0, Y: 0, Width: 100, Height: 50}},
	}
	for _, c := range cases {
		if got := c.in.Clamp(bounds); got != c.out {
			t.Errorf("%v.Clamp = %v, want %v", c.in, got, c.out)
		}
	}
}

func TestRectImage(t *testing.T) {
	got := Rect{X: 0.4, Y: 1.6, Width: 10.2, Height: 4.8}.Image()
	want := image.Rect(0, 2, 11, 6)
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestViewInvariant(t *testing.T) {
	native := Size{Width: 612, Height: 792}
	v := NewView(3, 5, native, 0.75)
	if v.Display != native.Scale(v.Scale) {
		t.Errorf("display size %v, want %v", v.Display, native.Scale(v.Scale))
	}
	for n, want := range map[int]int{-1: 1, 0: 1, 1: 1, 4: 4, 5: 5, 6: 5} {
		if got := v.ClampPage(n); got != want {
			t.Errorf("ClampPage(%d) = %d, want %d", n, got, want)
		}
	}
	if got := (View{}).ClampPage(3); got != 0 {
		t.Errorf("empty view ClampPage = %d", got)
	}
}
