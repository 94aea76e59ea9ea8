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

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"seehuhn.de/go/pdfoverlay/coord"
)

// fakeDoc is a document where every page has the given size.  Rendering a
// page listed in slow blocks until the context is cancelled.
type fakeDoc struct {
	pages   int
	size    coord.Size
	slow    map[int]bool
	started chan int
	failOn  int
}

func (d *fakeDoc) NumPages() int { return d.pages }

func (d *fakeDoc) PageSize(page int) (coord.Size, error) {
	return d.size, nil
}

func (d *fakeDoc) RenderPage(ctx context.Context, page int, scale float64) (*image.RGBA, error) {
	if d.started != nil {
		d.started <- page
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.slow[page] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if page == d.failOn {
		return nil, errors.New("broken page")
	}
	w := int(d.size.Width*scale + 0.5)
	h := int(d.size.Height*scale + 0.5)
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

type fakeLoader struct {
	doc *fakeDoc
	err error
}

func (l *fakeLoader) Load(ctx context.Context, data []byte) (Document, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.doc, nil
}

type viewRecorder struct {
	views []coord.View
}

func (r *viewRecorder) SetView(v coord.View) {
	r.views = append(r.views, v)
}

var letter = coord.Size{Width: 612, Height: 792}

func newTestDriver(t *testing.T, doc *fakeDoc) *Driver {
	t.Helper()
	d := NewDriver(&fakeLoader{doc: doc})
	d.Padding = coord.Size{Width: 40, Height: 40}
	err := d.Load(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestLoadStates(t *testing.T) {
	d := NewDriver(&fakeLoader{err: errors.New("not a PDF")})
	if d.State() != Idle {
		t.Errorf("initial state %s", d.State())
	}

	err := d.Load(context.Background(), []byte("garbage"))
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if d.State() != Failed {
		t.Errorf("state after failed load: %s", d.State())
	}
	if d.Document() != nil {
		t.Error("failed load left a document")
	}

	d.loader = &fakeLoader{doc: &fakeDoc{pages: 2, size: letter}}
	err = d.Load(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.State() != Ready || d.Page() != 1 {
		t.Errorf("state %s, page %d", d.State(), d.Page())
	}

	d.Close()
	if d.State() != Idle || d.Document() != nil || d.Frame() != nil {
		t.Error("Close did not reset the driver")
	}
}

func TestEmptyDocument(t *testing.T) {
	d := NewDriver(&fakeLoader{doc: &fakeDoc{pages: 0, size: letter}})
	err := d.Load(context.Background(), nil)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestResizeScale(t *testing.T) {
	views := &viewRecorder{}
	d := newTestDriver(t, &fakeDoc{pages: 3, size: letter})
	d.Views = views

	var seen []int
	d.OnFrame = func(f *Frame) { seen = append(seen, f.Page) }

	frame, err := d.Resize(context.Background(), coord.Size{Width: 800, Height: 600})
	if err != nil {
		t.Fatal(err)
	}
	if frame == nil {
		t.Fatal("no frame")
	}

	approx := cmpopts.EquateApprox(0, 1e-9)
	if d := cmp.Diff(560.0/792.0, frame.View.Scale, approx); d != "" {
		t.Errorf("scale (-want +got):\n%s", d)
	}
	if d := cmp.Diff(frame.View.Native.Scale(frame.View.Scale), frame.View.Display, approx); d != "" {
		t.Errorf("display size (-want +got):\n%s", d)
	}
	b := frame.Image.Bounds()
	if b.Dx() != 433 || b.Dy() != 560 {
		t.Errorf("image size %dx%d", b.Dx(), b.Dy())
	}

	_, err = d.ShowPage(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]int{1, 2}, seen); d != "" {
		t.Errorf("frames (-want +got):\n%s", d)
	}
	if len(views.views) != 2 || views.views[1].Page != 2 || views.views[1].PageCount != 3 {
		t.Errorf("views not published: %v", views.views)
	}
}

func TestEmptyViewportDeferred(t *testing.T) {
	d := newTestDriver(t, &fakeDoc{pages: 1, size: letter})
	d.OnFrame = func(*Frame) { t.Error("unexpected frame") }

	frame, err := d.Refresh(context.Background())
	if frame != nil || err != nil {
		t.Errorf("got %v, %v", frame, err)
	}

	// padding larger than the viewport
	frame, err = d.Resize(context.Background(), coord.Size{Width: 30, Height: 30})
	if frame != nil || err != nil {
		t.Errorf("got %v, %v", frame, err)
	}
}

func TestPageOutOfRange(t *testing.T) {
	buf := &bytes.Buffer{}
	d := newTestDriver(t, &fakeDoc{pages: 2, size: letter})
	d.Logger = log.New(buf, "", 0)

	good, err := d.Resize(context.Background(), coord.Size{Width: 800, Height: 600})
	if err != nil {
		t.Fatal(err)
	}

	_, err = d.ShowPage(context.Background(), 5)
	var renderErr *RenderError
	if !errors.As(err, &renderErr) || renderErr.Page != 5 {
		t.Fatalf("expected RenderError for page 5, got %v", err)
	}
	if d.Frame() != good {
		t.Error("last good frame was replaced")
	}
	if !strings.Contains(buf.String(), "page 5") {
		t.Errorf("error not logged: %q", buf.String())
	}
}

func TestRenderFailure(t *testing.T) {
	d := newTestDriver(t, &fakeDoc{pages: 2, size: letter, failOn: 2})
	_, err := d.Resize(context.Background(), coord.Size{Width: 800, Height: 600})
	if err != nil {
		t.Fatal(err)
	}
	_, err = d.ShowPage(context.Background(), 2)
	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if d.Frame().Page != 1 {
		t.Errorf("visible page %d", d.Frame().Page)
	}
}

// TestLatestRequestWins requests pages 1, 2 and 3 in quick succession,
// where the first two renders are slow.  Only page 3 may become visible.
func TestLatestRequestWins(t *testing.T) {
	doc := &fakeDoc{
		pages:   3,
		size:    letter,
		slow:    map[int]bool{1: true, 2: true},
		started: make(chan int, 3),
	}
	d := newTestDriver(t, doc)
	d.viewport = coord.Size{Width: 800, Height: 600}
	logBuf := &bytes.Buffer{}
	d.Logger = log.New(logBuf, "", 0)

	var mu sync.Mutex
	var seen []int
	d.OnFrame = func(f *Frame) {
		mu.Lock()
		seen = append(seen, f.Page)
		mu.Unlock()
	}

	type result struct {
		frame *Frame
		err   error
	}
	results := make(chan result, 2)
	for _, page := range []int{1, 2} {
		go func() {
			frame, err := d.ShowPage(context.Background(), page)
			results <- result{frame, err}
		}()
		<-doc.started // wait until the render is in flight
	}

	frame, err := d.ShowPage(context.Background(), 3)
	<-doc.started
	if err != nil {
		t.Fatal(err)
	}
	if frame == nil || frame.Page != 3 {
		t.Fatalf("got frame %v", frame)
	}

	for range 2 {
		res := <-results
		if res.frame != nil || res.err != nil {
			t.Errorf("superseded request returned %v, %v", res.frame, res.err)
		}
	}

	if d.Frame().Page != 3 {
		t.Errorf("visible page %d", d.Frame().Page)
	}
	mu.Lock()
	defer mu.Unlock()
	if d := cmp.Diff([]int{3}, seen); d != "" {
		t.Errorf("committed frames (-want +got):\n%s", d)
	}
	if d.Rendering() {
		t.Error("driver still reports a render in flight")
	}
	if logBuf.Len() > 0 {
		t.Errorf("superseded renders were logged: %q", logBuf.String())
	}
}

func TestCallerCancel(t *testing.T) {
	d := newTestDriver(t, &fakeDoc{pages: 2, size: letter})
	logBuf := &bytes.Buffer{}
	d.Logger = log.New(logBuf, "", 0)

	var committed int
	d.OnFrame = func(*Frame) { committed++ }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	frame, err := d.Resize(ctx, coord.Size{Width: 800, Height: 600})
	if frame != nil || err != nil {
		t.Errorf("cancelled render returned %v, %v", frame, err)
	}
	if logBuf.Len() > 0 {
		t.Errorf("cancelled render was logged: %q", logBuf.String())
	}
	if committed != 0 || d.Frame() != nil {
		t.Error("cancelled render was committed")
	}
	if d.Rendering() {
		t.Error("driver still reports a render in flight")
	}

	// the next request renders normally
	frame, err = d.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if frame == nil || frame.Page != 1 {
		t.Errorf("got frame %v", frame)
	}
}

func TestStateString(t *testing.T) {
	for _, s := range []State{Idle, Loading, Ready, Failed, State(9)} {
		if s.String() == "" {
			t.Errorf("empty name for %d", int(s))
		}
	}
}
