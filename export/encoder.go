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

package export

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"
)

// Encoder writes a rendered page to an image file.
type Encoder interface {
	Encode(w io.Writer, img image.Image, format Format, quality int) error
}

// StdEncoder encodes images using the codecs from the standard library.
type StdEncoder struct{}

// Encode implements the [Encoder] interface.
func (StdEncoder) Encode(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case PNG:
		enc := &png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	default:
		return errNotRaster
	}
}
