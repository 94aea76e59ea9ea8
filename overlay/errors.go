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
	"errors"
	"strconv"
)

// ErrUnsupportedFormat is returned when an overlay image is neither PNG
// nor JPEG.  Images are checked by [NewImage], so this indicates an
// image which bypassed intake.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// IntakeError is returned when a user-supplied file is rejected before it
// enters the editor.
type IntakeError struct {
	// Name is the file name, if known.
	Name string

	// MimeType is the declared type of the file.
	MimeType string

	Err error
}

func (err *IntakeError) Error() string {
	msg := "rejected"
	if err.Name != "" {
		msg += " " + strconv.Quote(err.Name)
	}
	if err.MimeType != "" {
		msg += " (" + err.MimeType + ")"
	}
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err *IntakeError) Unwrap() error {
	return err.Err
}

var (
	errWrongType    = errors.New("file type not accepted")
	errTypeMismatch = errors.New("file content does not match its type")
)
