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

// Pdfoverlay places PNG or JPEG images on a page of a PDF file.
//
// Usage:
//
//	pdfoverlay [options] input.pdf image.png[@x,y,w,h] ...
//
// Image positions are given in pixels of the page as it would be shown
// in a viewport of the size given by -viewport.  Images without a
// position are stacked near the top-left corner of the page.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"seehuhn.de/go/pdfoverlay/coord"
	"seehuhn.de/go/pdfoverlay/editor"
	"seehuhn.de/go/pdfoverlay/export"
	"seehuhn.de/go/pdfoverlay/pdfdoc"
)

func main() {
	pageNum := flag.Int("page", 1, "page number to modify (1-based)")
	viewport := flag.String("viewport", "800x600", "viewport size `WxH` for image positions")
	pad := flag.Float64("pad", 40, "total padding around the page, in pixels")
	format := flag.String("format", "pdf", "output format: pdf, jpeg or png")
	scale := flag.Float64("scale", 2, "pixels per PDF unit for image output")
	quality := flag.Int("quality", 92, "JPEG quality for image output")
	single := flag.Bool("single", false, "allow only one image, with fixed aspect ratio")
	outName := flag.String("o", "", "output file name")
	passwd := flag.String("passwd", "", "password for encrypted input files")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] input.pdf image[@x,y,w,h] ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	outFormat, err := export.ParseFormat(*format)
	if err != nil {
		log.Fatal(err)
	}
	vp, err := parseSize(*viewport)
	if err != nil {
		log.Fatal(err)
	}

	cfg := &editor.Config{
		Padding:  coord.Size{Width: *pad, Height: *pad},
		Document: &pdfdoc.Options{ReadPassword: passwordFunc(*passwd)},
		Export:   &export.Options{RasterScale: *scale, JPEGQuality: *quality},
		Logger:   log.Default(),
	}
	if *single {
		cfg.LockAspect = true
		cfg.Limit = 1
	}
	s := editor.NewSession(cfg)
	defer s.CloseDocument()

	ctx := context.Background()

	inName := flag.Arg(0)
	data, err := os.ReadFile(inName)
	if err != nil {
		log.Fatal(err)
	}
	_, err = s.OpenDocument(ctx, filepath.Base(inName), mimeType(inName), data)
	if err != nil {
		log.Fatal(err)
	}
	_, err = s.SetViewport(ctx, vp)
	if err != nil {
		log.Fatal(err)
	}
	if *pageNum != 1 {
		_, err = s.GoToPage(ctx, *pageNum)
		if err != nil {
			log.Fatal(err)
		}
	}
	if s.View().IsZero() {
		log.Fatalf("viewport %s is too small for the padding", *viewport)
	}

	for _, arg := range flag.Args()[1:] {
		fileName, rect, err := parseImageArg(arg)
		if err != nil {
			log.Fatal(err)
		}
		imgData, err := os.ReadFile(fileName)
		if err != nil {
			log.Fatal(err)
		}
		id, err := s.AddImage(filepath.Base(fileName), mimeType(fileName), imgData)
		if err != nil {
			log.Fatal(err)
		}
		if rect != nil {
			s.SetRect(id, *rect)
		}
	}

	name, out, err := s.Export(ctx, outFormat)
	if err != nil {
		log.Fatal(err)
	}
	if *outName != "" {
		name = *outName
	}
	err = os.WriteFile(name, out, 0o644)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("wrote %d image(s) on page %d of %s to %s\n",
		len(s.Placements()), s.View().Page, inName, name)
}

// passwordFunc returns a callback which first tries the password given on
// the command line, and then asks on the terminal.
func passwordFunc(passwd string) func([]byte, int) string {
	return func(_ []byte, try int) string {
		if try == 0 && passwd != "" {
			return passwd
		}
		if !term.IsTerminal(int(syscall.Stdin)) {
			return ""
		}
		fmt.Fprint(os.Stderr, "password: ")
		res, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return ""
		}
		return string(res)
	}
}

func mimeType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	t := mime.TypeByExtension(ext)
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return t
}

func parseSize(s string) (coord.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return coord.Size{}, fmt.Errorf("invalid size %q", s)
	}
	width, err1 := strconv.ParseFloat(w, 64)
	height, err2 := strconv.ParseFloat(h, 64)
	if err1 != nil || err2 != nil || !(width > 0 && height > 0) {
		return coord.Size{}, fmt.Errorf("invalid size %q", s)
	}
	return coord.Size{Width: width, Height: height}, nil
}

// parseImageArg splits an argument of the form "file@x,y,w,h".
func parseImageArg(arg string) (string, *coord.Rect, error) {
	i := strings.LastIndexByte(arg, '@')
	if i < 0 {
		return arg, nil, nil
	}
	parts := strings.Split(arg[i+1:], ",")
	if len(parts) != 4 {
		return "", nil, fmt.Errorf("invalid image position in %q", arg)
	}
	var v [4]float64
	for j, p := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid image position in %q", arg)
		}
		v[j] = x
	}
	rect := &coord.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if !rect.Valid() {
		return "", nil, fmt.Errorf("image size must be positive in %q", arg)
	}
	return arg[:i], rect, nil
}
