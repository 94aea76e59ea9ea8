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

package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"seehuhn.de/go/pdfoverlay/coord"
)

// Format is the encoding of an overlay image.
type Format int

// These are the supported image formats.
const (
	FormatUnknown Format = iota
	FormatPNG
	FormatJPEG
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "PNG"
	case FormatJPEG:
		return "JPEG"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// MimeType returns the MIME type used for f.
func (f Format) MimeType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	default:
		return ""
	}
}

// Mime types accepted by the editor.
const (
	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
)

// Image is an overlay image as supplied by the user.
// The data must not be modified after the Image has been created.
type Image struct {
	Name   string
	Data   []byte
	Format Format

	// Width and Height give the image size in pixels.
	Width, Height int
}

// NewImage checks an uploaded image and returns it in a form which can be
// added to a [Store].  Only PNG and JPEG images are accepted; everything
// else is rejected with an [*IntakeError].
func NewImage(name, mimeType string, data []byte) (*Image, error) {
	var want Format
	switch mimeType {
	case MimePNG:
		want = FormatPNG
	case MimeJPEG:
		want = FormatJPEG
	default:
		return nil, &IntakeError{Name: name, MimeType: mimeType, Err: errWrongType}
	}

	cfg, kind, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &IntakeError{Name: name, MimeType: mimeType, Err: err}
	}
	if formatFromName(kind) != want {
		return nil, &IntakeError{Name: name, MimeType: mimeType, Err: errTypeMismatch}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &IntakeError{Name: name, MimeType: mimeType, Err: errTypeMismatch}
	}

	return &Image{
		Name:   name,
		Data:   data,
		Format: want,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// CheckDocumentType rejects files which are not PDF documents.
func CheckDocumentType(name, mimeType string) error {
	if mimeType != MimePDF {
		return &IntakeError{Name: name, MimeType: mimeType, Err: errWrongType}
	}
	return nil
}

func formatFromName(kind string) Format {
	switch kind {
	case "png":
		return FormatPNG
	case "jpeg":
		return FormatJPEG
	default:
		return FormatUnknown
	}
}

// Decode decodes the image data according to the stored format.
func Decode(img *Image) (image.Image, error) {
	r := bytes.NewReader(img.Data)
	switch img.Format {
	case FormatPNG:
		return png.Decode(r)
	case FormatJPEG:
		return jpeg.Decode(r)
	default:
		return nil, fmt.Errorf("%s: %w", img.Format, ErrUnsupportedFormat)
	}
}

// Stamp is an encoded image together with its position in document space,
// ready to be drawn onto a PDF page.
type Stamp struct {
	Data []byte
	Kind Format

	// Rect is the image position in PDF units, relative to the bottom-left
	// corner of the visible page area.
	Rect coord.Rect
}
