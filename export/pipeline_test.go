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
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"seehuhn.de/go/pdfoverlay/coord"
	"seehuhn.de/go/pdfoverlay/overlay"
)

type testSource struct {
	size coord.Size
}

func (s *testSource) NumPages() int { return 2 }

func (s *testSource) PageSize(page int) (coord.Size, error) {
	return s.size, nil
}

func (s *testSource) RenderPage(ctx context.Context, page int, scale float64) (*image.RGBA, error) {
	w := int(s.size.Width * scale)
	h := int(s.size.Height * scale)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return img, nil
}

type embedCall struct {
	Page int
	Name string
	Kind overlay.Format
	Rect coord.Rect
}

// recordingWriter appends one byte per embedded image to the document.
type recordingWriter struct {
	mu    sync.Mutex
	calls []embedCall
	names map[string]string

	enter   chan struct{}
	release chan struct{}
}

func (w *recordingWriter) EmbedImage(doc []byte, pageIndex int, img []byte, kind overlay.Format, rect coord.Rect) ([]byte, error) {
	if w.enter != nil {
		w.enter <- struct{}{}
		<-w.release
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, embedCall{
		Page: pageIndex,
		Name: w.names[string(img)],
		Kind: kind,
		Rect: rect,
	})
	out := append([]byte{}, doc...)
	return append(out, '+'), nil
}

func solidPNG(t *testing.T, c color.Color, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func placement(t *testing.T, id overlay.ID, name string, data []byte, rect coord.Rect) overlay.Placement {
	t.Helper()
	img, err := overlay.NewImage(name, overlay.MimePNG, data)
	if err != nil {
		t.Fatal(err)
	}
	return overlay.Placement{ID: id, Image: img, Rect: rect}
}

var letter = coord.Size{Width: 612, Height: 792}

func TestDocumentScenario(t *testing.T) {
	data := solidPNG(t, color.Black, 4, 4)
	w := &recordingWriter{names: map[string]string{string(data): "sig"}}
	p := &Pipeline{Writer: w}

	scale := 560.0 / 792.0
	req := &Request{
		Document: []byte("%PDF"),
		Source:   &testSource{size: letter},
		Page:     2,
		View:     coord.NewView(2, 2, letter, scale),
		Placements: []overlay.Placement{
			placement(t, 1, "sig.png", data, coord.Rect{X: 50, Y: 50, Width: 150, Height: 150}),
		},
		Format: Document,
	}
	out, err := p.Export(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "%PDF+" {
		t.Errorf("output %q", out)
	}

	want := []embedCall{{
		Page: 1,
		Name: "sig",
		Kind: overlay.FormatPNG,
		Rect: coord.Rect{X: 70.71, Y: 509.14, Width: 212.14, Height: 212.14},
	}}
	if d := cmp.Diff(want, w.calls, cmpopts.EquateApprox(0, 0.01)); d != "" {
		t.Errorf("embed calls (-want +got):\n%s", d)
	}
}

func TestDocumentOrder(t *testing.T) {
	a := solidPNG(t, color.Black, 1, 1)
	b := solidPNG(t, color.White, 1, 1)
	c := solidPNG(t, color.Gray{Y: 128}, 1, 1)
	w := &recordingWriter{names: map[string]string{
		string(a): "A", string(b): "B", string(c): "C",
	}}
	p := &Pipeline{Writer: w}

	rect := coord.Rect{X: 0, Y: 0, Width: 10, Height: 10}
	req := &Request{
		Document: []byte("doc"),
		Source:   &testSource{size: letter},
		Page:     1,
		View:     coord.NewView(1, 2, letter, 1),
		Placements: []overlay.Placement{
			placement(t, 1, "a.png", a, rect),
			placement(t, 2, "b.png", b, rect),
			placement(t, 3, "c.png", c, rect),
		},
		Format: Document,
	}
	out, err := p.Export(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "doc+++" {
		t.Errorf("output %q", out)
	}
	var names []string
	for _, call := range w.calls {
		names = append(names, call.Name)
	}
	if d := cmp.Diff([]string{"A", "B", "C"}, names); d != "" {
		t.Errorf("embed order (-want +got):\n%s", d)
	}
}

// batchWriter records the stamps of each EmbedImages call.  Single-image
// calls are counted, so that tests can check they are not used.
type batchWriter struct {
	recordingWriter
	batches [][]overlay.Stamp
}

func (w *batchWriter) EmbedImages(doc []byte, pageIndex int, stamps []overlay.Stamp) ([]byte, error) {
	w.batches = append(w.batches, stamps)
	out := append([]byte{}, doc...)
	for range stamps {
		out = append(out, '*')
	}
	return out, nil
}

func TestDocumentBatch(t *testing.T) {
	a := solidPNG(t, color.Black, 1, 1)
	b := solidPNG(t, color.White, 1, 1)
	w := &batchWriter{}
	p := &Pipeline{Writer: w}

	scale := 560.0 / 792.0
	req := &Request{
		Document: []byte("doc"),
		Source:   &testSource{size: letter},
		Page:     2,
		View:     coord.NewView(2, 2, letter, scale),
		Placements: []overlay.Placement{
			placement(t, 1, "a.png", a, coord.Rect{X: 50, Y: 50, Width: 150, Height: 150}),
			placement(t, 2, "b.png", b, coord.Rect{X: 0, Y: 0, Width: 10, Height: 10}),
		},
		Format: Document,
	}
	out, err := p.Export(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "doc**" {
		t.Errorf("output %q", out)
	}
	if len(w.calls) != 0 {
		t.Errorf("%d single-image calls, want 0", len(w.calls))
	}
	if len(w.batches) != 1 {
		t.Fatalf("%d batches, want 1", len(w.batches))
	}

	want := []overlay.Stamp{
		{Data: a, Kind: overlay.FormatPNG, Rect: coord.Rect{X: 70.71, Y: 509.14, Width: 212.14, Height: 212.14}},
		{Data: b, Kind: overlay.FormatPNG, Rect: coord.Rect{X: 0, Y: 777.86, Width: 14.14, Height: 14.14}},
	}
	if d := cmp.Diff(want, w.batches[0], cmpopts.EquateApprox(0, 0.01)); d != "" {
		t.Errorf("stamps (-want +got):\n%s", d)
	}
}

func TestCorruptOverlay(t *testing.T) {
	good := solidPNG(t, color.Black, 2, 2)
	w := &recordingWriter{}
	p := &Pipeline{Writer: w}

	bad := placement(t, 2, "bad.png", good, coord.Rect{Width: 10, Height: 10})
	bad.Image = &overlay.Image{Name: "bad.png", Data: good[:20], Format: overlay.FormatPNG, Width: 2, Height: 2}

	doc := []byte("original")
	placements := []overlay.Placement{
		placement(t, 1, "a.png", good, coord.Rect{Width: 10, Height: 10}),
		bad,
		placement(t, 3, "c.png", good, coord.Rect{Width: 10, Height: 10}),
	}
	req := &Request{
		Document:   doc,
		Source:     &testSource{size: letter},
		Page:       1,
		View:       coord.NewView(1, 2, letter, 1),
		Placements: placements,
	}

	for _, format := range []Format{Document, PNG} {
		req.Format = format
		out, err := p.Export(context.Background(), req)
		var exportErr *ExportError
		if !errors.As(err, &exportErr) {
			t.Fatalf("%s: expected ExportError, got %v", format, err)
		}
		if out != nil {
			t.Errorf("%s: partial output returned", format)
		}
	}
	if len(w.calls) != 0 {
		t.Errorf("writer called %d times", len(w.calls))
	}
	if string(doc) != "original" {
		t.Errorf("document modified: %q", doc)
	}
	if p.Busy() {
		t.Error("busy flag not reset after failure")
	}

	// retry after removing the corrupt overlay
	req.Placements = []overlay.Placement{placements[0], placements[2]}
	req.Format = Document
	out, err := p.Export(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "original++" {
		t.Errorf("output %q", out)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	p := &Pipeline{Writer: &recordingWriter{}}
	req := &Request{
		Source: &testSource{size: letter},
		Page:   1,
		View:   coord.NewView(1, 2, letter, 1),
		Placements: []overlay.Placement{{
			ID:    1,
			Image: &overlay.Image{Name: "x.gif", Data: []byte("GIF89a"), Format: overlay.FormatUnknown},
		}},
	}
	_, err := p.Export(context.Background(), req)
	if !errors.Is(err, overlay.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestPageRange(t *testing.T) {
	p := &Pipeline{Writer: &recordingWriter{}}
	for _, page := range []int{0, 3} {
		req := &Request{
			Source: &testSource{size: letter},
			Page:   page,
			View:   coord.NewView(1, 2, letter, 1),
		}
		_, err := p.Export(context.Background(), req)
		var exportErr *ExportError
		if !errors.As(err, &exportErr) {
			t.Errorf("page %d: expected ExportError, got %v", page, err)
		}
	}
}

func TestBusy(t *testing.T) {
	data := solidPNG(t, color.Black, 1, 1)
	w := &recordingWriter{
		enter:   make(chan struct{}),
		release: make(chan struct{}),
	}
	p := &Pipeline{Writer: w}
	req := &Request{
		Document:   []byte("doc"),
		Source:     &testSource{size: letter},
		Page:       1,
		View:       coord.NewView(1, 2, letter, 1),
		Placements: []overlay.Placement{placement(t, 1, "a.png", data, coord.Rect{Width: 5, Height: 5})},
	}

	done := make(chan error)
	go func() {
		_, err := p.Export(context.Background(), req)
		done <- err
	}()
	<-w.enter

	if !p.Busy() {
		t.Error("Busy() is false during export")
	}
	_, err := p.Export(context.Background(), req)
	if !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(w.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if p.Busy() {
		t.Error("busy flag not reset")
	}
}

func TestRasterComposite(t *testing.T) {
	red := solidPNG(t, color.NRGBA{R: 255, A: 255}, 3, 3)
	blue := solidPNG(t, color.NRGBA{B: 255, A: 255}, 3, 3)
	size := coord.Size{Width: 100, Height: 50}

	p := &Pipeline{}
	req := &Request{
		Source: &testSource{size: size},
		Page:   1,
		View:   coord.NewView(1, 2, size, 1),
		Placements: []overlay.Placement{
			placement(t, 1, "red.png", red, coord.Rect{X: 10, Y: 10, Width: 20, Height: 20}),
			placement(t, 2, "blue.png", blue, coord.Rect{X: 20, Y: 10, Width: 20, Height: 20}),
		},
		Format: PNG,
	}
	out, err := p.Export(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}

	// the default raster scale doubles the display coordinates
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("image size %dx%d", b.Dx(), b.Dy())
	}
	cases := []struct {
		x, y int
		want color.RGBA
	}{
		{5, 5, color.RGBA{255, 255, 255, 255}},
		{30, 30, color.RGBA{255, 0, 0, 255}},
		{50, 30, color.RGBA{0, 0, 255, 255}}, // overlap: later on top
		{70, 50, color.RGBA{0, 0, 255, 255}},
		{90, 50, color.RGBA{255, 255, 255, 255}},
	}
	for _, c := range cases {
		got := color.RGBAModel.Convert(img.At(c.x, c.y)).(color.RGBA)
		if got != c.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", c.x, c.y, got, c.want)
		}
	}
}

func TestJPEGOutput(t *testing.T) {
	size := coord.Size{Width: 40, Height: 30}
	p := &Pipeline{Options: &Options{RasterScale: 1.5, JPEGQuality: 50}}
	req := &Request{
		Source: &testSource{size: size},
		Page:   1,
		View:   coord.NewView(1, 2, size, 3),
		Format: JPEG,
	}
	out, err := p.Export(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	cfg, kind, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if kind != "jpeg" || cfg.Width != 60 || cfg.Height != 45 {
		t.Errorf("got %s %dx%d", kind, cfg.Width, cfg.Height)
	}
}

func TestFileName(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		page   int
		want   string
	}{
		{"contract.pdf", Document, 1, "modified_contract.pdf"},
		{"contract.pdf", JPEG, 3, "contract_page3.jpg"},
		{"contract.pdf", PNG, 12, "contract_page12.png"},
		{"/tmp/scan.v2.pdf", PNG, 1, "scan.v2_page1.png"},
		{"Vertrag-Müller.pdf", Document, 1, "modified_Vertrag-Müller.pdf"},
		{"", JPEG, 1, "document_page1.jpg"},
	}
	for _, c := range cases {
		got := FileName(c.name, c.format, c.page)
		if got != c.want {
			t.Errorf("FileName(%q, %s, %d) = %q, want %q", c.name, c.format, c.page, got, c.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"pdf": Document, "JPG": JPEG, "jpeg": JPEG, "png": PNG} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("gif"); err == nil {
		t.Error("gif accepted")
	}
}
