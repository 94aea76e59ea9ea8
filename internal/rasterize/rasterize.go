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

// Package rasterize draws the content of a PDF page into an RGBA image.
//
// The renderer covers what is needed to show a page behind the overlays:
// filled and stroked paths, image XObjects and glyphs of embedded
// TrueType/OpenType fonts.  Shadings, patterns, clipping and blend modes
// are ignored.
package rasterize

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/vec"
	"seehuhn.de/go/pdf"
	pdfcolor "seehuhn.de/go/pdf/graphics/color"
	"seehuhn.de/go/pdf/reader"
)

// Render draws a page onto a white background.
//
// The area given by box (in PDF user space units) is mapped to an image of
// size ceil(w*scale) x ceil(h*scale) pixels, where w and h are the width
// and height of the box after the page rotation has been applied.  The
// top-left corner of the rotated box is at pixel (0, 0).  Rendering stops
// with ctx.Err() as soon as ctx is cancelled.
func Render(ctx context.Context, r pdf.Getter, pageDict pdf.Dict, box *pdf.Rectangle, rotate int, scale float64) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	visW, visH := VisibleSize(box, rotate)
	width := max(int(math.Ceil(visW*scale)), 1)
	height := max(int(math.Ceil(visH*scale)), 1)

	// Rotate the page into its visible orientation, scale to pixels, then
	// flip the y-axis so that the top of the page is at pixel row 0.
	device := PageMatrix(box, rotate).
		Mul(matrix.Scale(scale, -scale)).
		Mul(matrix.Translate(0, visH*scale))

	p := newPainter(ctx, r, width, height, device, scale)
	p.install()

	err := p.rd.ParsePage(pageDict, matrix.Identity)
	if err != nil {
		return nil, err
	}
	return p.img, nil
}

// NormalizeRotation maps the value of a /Rotate entry to one of 0, 90, 180
// or 270.  Values which are not a multiple of 90 are treated as 0.
func NormalizeRotation(rotate int) int {
	if rotate%90 != 0 {
		return 0
	}
	return (rotate%360 + 360) % 360
}

// VisibleSize returns the width and height of box, as shown on screen
// after the page rotation has been applied.
func VisibleSize(box *pdf.Rectangle, rotate int) (float64, float64) {
	switch NormalizeRotation(rotate) {
	case 90, 270:
		return box.Dy(), box.Dx()
	default:
		return box.Dx(), box.Dy()
	}
}

// PageMatrix returns the map from PDF user space to visible page space.
// Visible page space has its origin at the bottom-left corner of the page
// as it is shown on screen, after the clockwise page rotation has been
// applied, and uses PDF units.
func PageMatrix(box *pdf.Rectangle, rotate int) matrix.Matrix {
	dx, dy := box.Dx(), box.Dy()
	var R matrix.Matrix
	switch NormalizeRotation(rotate) {
	case 90:
		R = matrix.Matrix{0, -1, 1, 0, 0, dx}
	case 180:
		R = matrix.Matrix{-1, 0, 0, -1, dx, dy}
	case 270:
		R = matrix.Matrix{0, 1, -1, 0, dy, 0}
	default:
		R = matrix.Identity
	}
	return matrix.Translate(-box.LLx, -box.LLy).Mul(R)
}

// painter receives the callbacks of a content stream reader and paints
// into img.
type painter struct {
	ctx    context.Context
	rd     *reader.Reader
	img    *image.RGBA
	raster *vector.Rasterizer

	// device maps PDF user space (with the identity CTM) to image pixels.
	device matrix.Matrix

	// deviceScale is the number of pixels per unit in PDF user space.
	deviceScale float64

	path  []segment
	fonts *fontCache
}

type segOp int

const (
	segMove segOp = iota
	segLine
	segCurve
	segClose
)

// segment is one path construction operator, in user space coordinates.
type segment struct {
	op  segOp
	pts []vec.Vec2
}

func newPainter(ctx context.Context, r pdf.Getter, width, height int, device matrix.Matrix, scale float64) *painter {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	return &painter{
		ctx:         ctx,
		rd:          reader.New(r, nil),
		img:         img,
		raster:      vector.NewRasterizer(width, height),
		device:      device,
		deviceScale: scale,
		fonts:       newFontCache(r),
	}
}

func (p *painter) install() {
	p.rd.UnknownOp = p.op
	p.rd.Character = p.character
}

// op handles the operators which the content stream reader does not
// interpret itself: path construction, painting and XObjects.
func (p *painter) op(name string, args []pdf.Object) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}

	switch name {
	case "m":
		if a, ok := numbers(args, 2); ok {
			p.moveTo(a[0], a[1])
		}
	case "l":
		if a, ok := numbers(args, 2); ok {
			p.lineTo(a[0], a[1])
		}
	case "c":
		if a, ok := numbers(args, 6); ok {
			p.curveTo(a[0], a[1], a[2], a[3], a[4], a[5])
		}
	case "v":
		if a, ok := numbers(args, 4); ok {
			cur, _ := p.currentPoint()
			p.curveTo(cur.X, cur.Y, a[0], a[1], a[2], a[3])
		}
	case "y":
		if a, ok := numbers(args, 4); ok {
			p.curveTo(a[0], a[1], a[2], a[3], a[2], a[3])
		}
	case "re":
		if a, ok := numbers(args, 4); ok {
			p.rectangle(a[0], a[1], a[2], a[3])
		}
	case "h":
		p.closePath()
	case "S", "s", "f", "F", "f*", "B", "B*", "b", "b*", "n":
		return p.paint(name)
	case "Do":
		if len(args) == 1 {
			if obj, ok := args[0].(pdf.Name); ok {
				return p.drawXObject(obj)
			}
		}
	}
	return nil
}

// numbers converts the first n operands to float64 values.
func numbers(args []pdf.Object, n int) ([]float64, bool) {
	if len(args) < n {
		return nil, false
	}
	res := make([]float64, n)
	for i := range res {
		switch x := args[i].(type) {
		case pdf.Integer:
			res[i] = float64(x)
		case pdf.Real:
			res[i] = float64(x)
		default:
			return nil, false
		}
	}
	return res, true
}

// currentPoint returns the end point of the last path segment.
func (p *painter) currentPoint() (vec.Vec2, bool) {
	for i := len(p.path) - 1; i >= 0; i-- {
		if pts := p.path[i].pts; len(pts) > 0 {
			return pts[len(pts)-1], true
		}
	}
	return vec.Vec2{}, false
}

func (p *painter) moveTo(x, y float64) {
	p.path = append(p.path, segment{segMove, []vec.Vec2{{X: x, Y: y}}})
}

func (p *painter) lineTo(x, y float64) {
	p.path = append(p.path, segment{segLine, []vec.Vec2{{X: x, Y: y}}})
}

func (p *painter) curveTo(x1, y1, x2, y2, x3, y3 float64) {
	p.path = append(p.path, segment{segCurve, []vec.Vec2{{X: x1, Y: y1}, {X: x2, Y: y2}, {X: x3, Y: y3}}})
}

func (p *painter) rectangle(x, y, w, h float64) {
	p.moveTo(x, y)
	p.lineTo(x+w, y)
	p.lineTo(x+w, y+h)
	p.lineTo(x, y+h)
	p.closePath()
}

func (p *painter) closePath() {
	p.path = append(p.path, segment{op: segClose})
}

// toDevice returns the map from current user space to image pixels.
func (p *painter) toDevice() matrix.Matrix {
	return p.rd.CTM.Mul(p.device)
}

func (p *painter) paint(op string) error {
	switch op {
	case "f", "F", "f*":
		p.fill(p.rd.FillColor)
	case "S":
		p.stroke()
	case "s":
		p.closePath()
		p.stroke()
	case "B", "B*":
		p.fill(p.rd.FillColor)
		p.stroke()
	case "b", "b*":
		p.closePath()
		p.fill(p.rd.FillColor)
		p.stroke()
	}
	p.path = p.path[:0]
	return nil
}

func (p *painter) fill(col pdfcolor.Color) {
	M := p.toDevice()
	b := p.img.Bounds()
	p.raster.Reset(b.Dx(), b.Dy())
	for _, s := range p.path {
		switch s.op {
		case segMove:
			q := apply(M, s.pts[0])
			p.raster.MoveTo(float32(q.X), float32(q.Y))
		case segLine:
			q := apply(M, s.pts[0])
			p.raster.LineTo(float32(q.X), float32(q.Y))
		case segCurve:
			q1 := apply(M, s.pts[0])
			q2 := apply(M, s.pts[1])
			q3 := apply(M, s.pts[2])
			p.raster.CubeTo(float32(q1.X), float32(q1.Y), float32(q2.X), float32(q2.Y), float32(q3.X), float32(q3.Y))
		case segClose:
			p.raster.ClosePath()
		}
	}
	p.raster.Draw(p.img, b, image.NewUniform(toGoColor(col)), image.Point{})
}

// stroke draws every path segment as a quadrilateral of the current line
// width.  Curves are flattened into line segments first.  Joins and caps
// are not drawn.
func (p *painter) stroke() {
	M := p.toDevice()
	b := p.img.Bounds()
	p.raster.Reset(b.Dx(), b.Dy())

	lw := p.rd.LineWidth
	if lw <= 0 {
		lw = 1
	}
	// The line width is given in user space; use the mean of the two axis
	// scale factors to convert it to pixels.
	w := 0.5 * lw * (math.Hypot(M[0], M[1]) + math.Hypot(M[2], M[3])) / 2
	w = max(w, 0.5)

	var start, cur vec.Vec2
	for _, s := range p.path {
		switch s.op {
		case segMove:
			cur = apply(M, s.pts[0])
			start = cur
		case segLine:
			next := apply(M, s.pts[0])
			p.strokeSegment(cur, next, w)
			cur = next
		case segCurve:
			q1 := apply(M, s.pts[0])
			q2 := apply(M, s.pts[1])
			q3 := apply(M, s.pts[2])
			const steps = 8
			for i := 1; i <= steps; i++ {
				next := bezier(cur, q1, q2, q3, float64(i)/steps)
				p.strokeSegment(cur, next, w)
				cur = next
			}
			cur = q3
		case segClose:
			p.strokeSegment(cur, start, w)
			cur = start
		}
	}
	p.raster.Draw(p.img, b, image.NewUniform(toGoColor(p.rd.StrokeColor)), image.Point{})
}

func (p *painter) strokeSegment(a, b vec.Vec2, w float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*w, dx/l*w
	p.raster.MoveTo(float32(a.X+nx), float32(a.Y+ny))
	p.raster.LineTo(float32(b.X+nx), float32(b.Y+ny))
	p.raster.LineTo(float32(b.X-nx), float32(b.Y-ny))
	p.raster.LineTo(float32(a.X-nx), float32(a.Y-ny))
	p.raster.ClosePath()
}

func apply(M matrix.Matrix, v vec.Vec2) vec.Vec2 {
	x, y := M.Apply(v.X, v.Y)
	return vec.Vec2{X: x, Y: y}
}

func bezier(p0, p1, p2, p3 vec.Vec2, t float64) vec.Vec2 {
	s := 1 - t
	a := s * s * s
	b := 3 * s * s * t
	c := 3 * s * t * t
	d := t * t * t
	return vec.Vec2{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

func toGoColor(c pdfcolor.Color) color.Color {
	if c == nil {
		return color.Black
	}

	vals, _, _ := pdfcolor.Operator(c)
	switch c.ColorSpace().Family() {
	case pdfcolor.FamilyDeviceGray, pdfcolor.FamilyCalGray:
		return color.Gray{Y: unit(vals, 0)}
	case pdfcolor.FamilyDeviceRGB, pdfcolor.FamilyCalRGB:
		return color.RGBA{R: unit(vals, 0), G: unit(vals, 1), B: unit(vals, 2), A: 255}
	case pdfcolor.FamilyDeviceCMYK:
		return color.CMYK{C: unit(vals, 0), M: unit(vals, 1), Y: unit(vals, 2), K: unit(vals, 3)}
	}
	return color.Black
}

func unit(vals []float64, i int) uint8 {
	if i >= len(vals) {
		return 0
	}
	x := vals[i]
	return uint8(math.Round(max(0, min(1, x)) * 255))
}
