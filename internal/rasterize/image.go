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

package rasterize

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	"io"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/pdf"
	pdfcolor "seehuhn.de/go/pdf/graphics/color"
)

func (p *painter) drawXObject(name pdf.Name) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	if p.rd.Resources == nil {
		return nil
	}

	r := p.rd.R
	stm, err := pdf.GetStream(r, p.rd.Resources.XObject[name])
	if err != nil || stm == nil {
		return nil
	}
	if subtype, _ := pdf.GetName(r, stm.Dict["Subtype"]); subtype != "Image" {
		// form XObjects are not drawn
		return nil
	}

	src, err := decodeImage(r, stm)
	if err != nil || src == nil {
		return nil
	}
	p.drawImage(src)
	return nil
}

// decodeImage converts an image XObject into a Go image.  Only JPEG data
// and 8-bit gray or RGB samples are handled.
func decodeImage(r pdf.Getter, stm *pdf.Stream) (image.Image, error) {
	// DCTDecode is not implemented by the PDF library, so the filters
	// before it are undone and the JPEG data is decoded here.
	filters := filterNames(r, stm.Dict["Filter"])
	numFilters := 0
	isJPEG := len(filters) > 0 && filters[len(filters)-1] == "DCTDecode"
	if isJPEG {
		numFilters = len(filters) - 1
		if numFilters == 0 {
			data, err := io.ReadAll(stm.R)
			if err != nil {
				return nil, err
			}
			return decodeJPEG(data)
		}
	}

	body, err := pdf.DecodeStream(r, stm, numFilters)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if isJPEG {
		return decodeJPEG(data)
	}

	w, _ := pdf.GetInteger(r, stm.Dict["Width"])
	h, _ := pdf.GetInteger(r, stm.Dict["Height"])
	bpc, _ := pdf.GetInteger(r, stm.Dict["BitsPerComponent"])
	cs, _ := pdf.GetName(r, stm.Dict["ColorSpace"])
	return decodeSamples(data, int(w), int(h), int(bpc), cs), nil
}

func filterNames(r pdf.Getter, obj pdf.Object) []pdf.Name {
	obj, _ = pdf.Resolve(r, obj)
	switch f := obj.(type) {
	case pdf.Name:
		return []pdf.Name{f}
	case pdf.Array:
		res := make([]pdf.Name, 0, len(f))
		for _, x := range f {
			name, _ := pdf.GetName(r, x)
			res = append(res, name)
		}
		return res
	}
	return nil
}

func decodeJPEG(data []byte) (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(data))
}

// decodeSamples interprets uncompressed 8-bit image samples.
func decodeSamples(data []byte, w, h, bpc int, cs pdf.Name) image.Image {
	if w <= 0 || h <= 0 || bpc != 8 {
		return nil
	}
	switch cs {
	case pdfcolor.FamilyDeviceGray:
		gray := image.NewGray(image.Rect(0, 0, w, h))
		if len(data) < len(gray.Pix) {
			return nil
		}
		copy(gray.Pix, data)
		return gray
	case pdfcolor.FamilyDeviceRGB:
		if len(data) < w*h*3 {
			return nil
		}
		rgba := image.NewRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < w*h; i++ {
			rgba.Pix[4*i+0] = data[3*i+0]
			rgba.Pix[4*i+1] = data[3*i+1]
			rgba.Pix[4*i+2] = data[3*i+2]
			rgba.Pix[4*i+3] = 255
		}
		return rgba
	}
	return nil
}

// drawImage paints src into the unit square of the current user space.
// The first image row is at the top of the square.
func (p *painter) drawImage(src image.Image) {
	b := src.Bounds()
	W, H := float64(b.Dx()), float64(b.Dy())

	// image pixels -> unit square -> user space -> device pixels
	toUnit := matrix.Matrix{1 / W, 0, 0, -1 / H, -float64(b.Min.X) / W, 1 + float64(b.Min.Y)/H}
	M := toUnit.Mul(p.toDevice())

	s2d := f64.Aff3{
		M[0], M[2], M[4],
		M[1], M[3], M[5],
	}
	xdraw.BiLinear.Transform(p.img, s2d, src, b, draw.Over, nil)
}
