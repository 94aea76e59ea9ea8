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

package render

import "strconv"

// DecodeError is returned when a document cannot be parsed.
type DecodeError struct {
	Err error
}

func (err *DecodeError) Error() string {
	return "cannot read document: " + err.Err.Error()
}

func (err *DecodeError) Unwrap() error {
	return err.Err
}

// RenderError is returned when a page cannot be rendered.
// Cancelled renders are not reported as errors.
type RenderError struct {
	Page int
	Err  error
}

func (err *RenderError) Error() string {
	return "cannot render page " + strconv.Itoa(err.Page) + ": " + err.Err.Error()
}

func (err *RenderError) Unwrap() error {
	return err.Err
}
