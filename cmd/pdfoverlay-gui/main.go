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

// Pdfoverlay-gui is a desktop editor for placing images on PDF pages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"seehuhn.de/go/pdfoverlay/editor"
	"seehuhn.de/go/pdfoverlay/export"
	"seehuhn.de/go/pdfoverlay/overlay"
	"seehuhn.de/go/pdfoverlay/render"
)

const appTitle = "PDF Overlay"

type mainWindow struct {
	fyne.Window

	session *editor.Session
	canvas  *pageCanvas
	status  *widget.Label
	page    *widget.Label
}

func main() {
	single := flag.Bool("single", false, "place a single image with fixed aspect ratio")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	a := app.NewWithID("de.seehuhn.pdfoverlay")
	mw := &mainWindow{Window: a.NewWindow(appTitle)}

	cfg := &editor.Config{
		Logger:  log.Default(),
		OnFrame: func(*render.Frame) { go mw.refresh() },
	}
	if *single {
		cfg.LockAspect = true
		cfg.Limit = 1
	}
	mw.session = editor.NewSession(cfg)
	mw.canvas = newPageCanvas(mw.session)
	mw.canvas.onError = mw.showError
	mw.status = widget.NewLabel("Open a PDF file to start.")
	mw.page = widget.NewLabel("")

	toolbar := container.NewHBox(
		widget.NewButton("Open PDF", mw.onOpenDocument),
		widget.NewButton("Add Image", mw.onAddImage),
		widget.NewButton("Replace", mw.onReplaceImage),
		widget.NewButton("Remove", mw.onRemoveImage),
		widget.NewSeparator(),
		widget.NewButton("<", func() { mw.navigate(mw.session.PrevPage) }),
		mw.page,
		widget.NewButton(">", func() { mw.navigate(mw.session.NextPage) }),
		widget.NewSeparator(),
		widget.NewButton("Save PDF", func() { mw.onExport(export.Document) }),
		widget.NewButton("Save JPEG", func() { mw.onExport(export.JPEG) }),
		widget.NewButton("Save PNG", func() { mw.onExport(export.PNG) }),
	)
	mw.SetContent(container.NewBorder(toolbar, mw.status, nil, nil, mw.canvas))
	mw.Resize(fyne.NewSize(1000, 800))
	mw.SetOnClosed(mw.session.CloseDocument)

	log.Printf("starting %s", appTitle)
	mw.ShowAndRun()
}

func (mw *mainWindow) refresh() {
	view := mw.session.View()
	if view.IsZero() {
		mw.page.SetText("")
	} else {
		mw.page.SetText(fmt.Sprintf("%d / %d", view.Page, view.PageCount))
	}
	mw.canvas.Refresh()
}

func (mw *mainWindow) showError(err error) {
	log.Print(err)
	dialog.ShowError(err, mw.Window)
}

// readFile shows a file dialog and passes the contents of the chosen file
// to use.
func (mw *mainWindow) readFile(extensions []string, use func(name, mimeType string, data []byte)) {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		defer reader.Close()
		data, err := io.ReadAll(reader)
		if err != nil {
			mw.showError(err)
			return
		}
		uri := reader.URI()
		use(uri.Name(), uri.MimeType(), data)
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(extensions))
	fd.Show()
}

func (mw *mainWindow) onOpenDocument() {
	mw.readFile([]string{".pdf"}, func(name, mimeType string, data []byte) {
		mw.status.SetText("Loading " + name + " ...")
		go func() {
			_, err := mw.session.OpenDocument(context.Background(), name, normalizeMime(mimeType), data)
			if err != nil {
				mw.status.SetText("")
				mw.showError(err)
				mw.refresh()
				return
			}
			mw.status.SetText(name)
			mw.refresh()
		}()
	})
}

var imageExtensions = []string{".png", ".jpg", ".jpeg"}

func (mw *mainWindow) onAddImage() {
	if mw.session.State() != render.Ready {
		mw.showError(editor.ErrNoDocument)
		return
	}
	mw.readFile(imageExtensions, func(name, mimeType string, data []byte) {
		id, err := mw.session.AddImage(name, normalizeMime(mimeType), data)
		if err != nil {
			mw.showError(err)
			return
		}
		mw.canvas.setSelected(id)
		mw.refresh()
	})
}

func (mw *mainWindow) onReplaceImage() {
	id := mw.canvas.Selected()
	if id == 0 {
		mw.showError(errors.New("select an image first"))
		return
	}
	mw.readFile(imageExtensions, func(name, mimeType string, data []byte) {
		err := mw.session.ReplaceImage(id, name, normalizeMime(mimeType), data)
		if err != nil {
			mw.showError(err)
			return
		}
		mw.refresh()
	})
}

func (mw *mainWindow) onRemoveImage() {
	id := mw.canvas.Selected()
	if id == 0 || !mw.session.RemoveImage(id) {
		return
	}
	mw.canvas.setSelected(0)
	mw.refresh()
}

func (mw *mainWindow) navigate(step func(context.Context) (*render.Frame, error)) {
	go func() {
		_, err := step(context.Background())
		if err != nil {
			mw.showError(err)
		}
	}()
}

func (mw *mainWindow) onExport(format export.Format) {
	if mw.session.ExportBusy() {
		mw.showError(export.ErrBusy)
		return
	}
	mw.status.SetText("Exporting ...")
	go func() {
		name, data, err := mw.session.Export(context.Background(), format)
		mw.status.SetText(mw.session.DocumentName())
		if err != nil {
			mw.showError(err)
			return
		}

		fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
			if err != nil || writer == nil {
				return
			}
			defer writer.Close()
			_, err = writer.Write(data)
			if err != nil {
				mw.showError(err)
				return
			}
			mw.status.SetText("Saved " + writer.URI().Name())
		}, mw.Window)
		fd.SetFileName(name)
		fd.Show()
	}()
}

// normalizeMime strips parameters from a MIME type and maps the legacy
// names some platforms use for JPEG.
func normalizeMime(t string) string {
	t, _, _ = strings.Cut(t, ";")
	t = strings.TrimSpace(strings.ToLower(t))
	if t == "image/jpg" || t == "image/pjpeg" {
		return overlay.MimeJPEG
	}
	return t
}
