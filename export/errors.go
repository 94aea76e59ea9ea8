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

import "errors"

// ErrBusy is returned when an export is started while another export is
// still running.
var ErrBusy = errors.New("another export is in progress")

// ExportError is returned for all export failures.  No output is produced
// when an ExportError is returned.
type ExportError struct {
	Op  string
	Err error
}

func (err *ExportError) Error() string {
	return "export: " + err.Op + ": " + err.Err.Error()
}

func (err *ExportError) Unwrap() error {
	return err.Err
}
