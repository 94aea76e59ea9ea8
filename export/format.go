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
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Format selects the kind of output produced by an export.
type Format int

// These are the supported output formats.
const (
	Document Format = iota
	JPEG
	PNG
)

func (f Format) String() string {
	switch f {
	case Document:
		return "pdf"
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// MimeType returns the MIME type of the output.
func (f Format) MimeType() string {
	switch f {
	case Document:
		return "application/pdf"
	case JPEG:
		return "image/jpeg"
	case PNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// ParseFormat converts a format name, as used on the command line, into a
// Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "pdf", "document":
		return Document, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	default:
		return 0, fmt.Errorf("unknown output format %q", s)
	}
}

// FileName returns the suggested name for an exported file.
// Modified documents are called "modified_<original>".  Page images are
// called "<base>_page<N>.jpg" or "<base>_page<N>.png", where base is the
// original name without its extension.
func FileName(original string, format Format, page int) string {
	original = norm.NFC.String(filepath.Base(original))
	if original == "." || original == string(filepath.Separator) {
		original = "document.pdf"
	}

	var ext string
	switch format {
	case Document:
		return "modified_" + original
	case JPEG:
		ext = ".jpg"
	default:
		ext = ".png"
	}
	base := strings.TrimSuffix(original, filepath.Ext(original))
	if base == "" {
		base = "document"
	}
	return base + "_page" + strconv.Itoa(page) + ext
}
