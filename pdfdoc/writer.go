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

package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"strconv"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/pdf"
	pdfimage "seehuhn.de/go/pdf/graphics/image"
	"seehuhn.de/go/pdf/pagetree"
	"seehuhn.de/go/pdf/pdfcopy"

	"seehuhn.de/go/pdfoverlay/coord"
	"seehuhn.de/go/pdfoverlay/internal/rasterize"
	"seehuhn.de/go/pdfoverlay/overlay"
)

// EmbedError is returned when an image cannot be embedded into a
// document.
type EmbedError struct {
	Kind overlay.Format
	Err  error
}

func (err *EmbedError) Error() string {
	return "cannot embed " + err.Kind.String() + " image: " + err.Err.Error()
}

func (err *EmbedError) Unwrap() error {
	return err.Err
}

var errDirectPage = errors.New("page dictionary is not an indirect object")

// Writer embeds images into existing PDF documents.
type Writer struct {
	Options *Options
}

// EmbedImage returns a copy of the PDF document doc, with the image drawn
// on top of the page with the given zero-based index.  The original data
// is not modified.
func (w *Writer) EmbedImage(doc []byte, pageIndex int, img []byte, kind overlay.Format, rect coord.Rect) ([]byte, error) {
	return Embed(doc, pageIndex, []overlay.Stamp{{Data: img, Kind: kind, Rect: rect}}, w.Options)
}

// EmbedImages is like EmbedImage, but draws all stamps in a single pass
// over the document.
func (w *Writer) EmbedImages(doc []byte, pageIndex int, stamps []overlay.Stamp) ([]byte, error) {
	return Embed(doc, pageIndex, stamps, w.Options)
}

// Embed returns a copy of the PDF document doc, with the stamps drawn on top
// of the page with the given zero-based index, in the given order.
//
// All objects of the original document are copied into a new file.  The
// page dictionary is rewritten: the original content is wrapped in a
// q/Q pair, and a new content stream drawing the images is appended.
func Embed(doc []byte, pageIndex int, stamps []overlay.Stamp, opt *Options) ([]byte, error) {
	var ropt *pdf.ReaderOptions
	if opt != nil && opt.ReadPassword != nil {
		ropt = &pdf.ReaderOptions{ReadPassword: opt.ReadPassword}
	}
	r, err := pdf.NewReader(bytes.NewReader(doc), ropt)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	numPages, err := pagetree.NumPages(r)
	if err != nil {
		return nil, err
	}
	if pageIndex < 0 || pageIndex >= numPages {
		return nil, fmt.Errorf("page index %d of %d: %w", pageIndex, numPages, ErrPageOutOfRange)
	}

	// Decode all images before anything is written, so that a bad image
	// is reported without producing output.
	images := make([]*xImage, len(stamps))
	for i, s := range stamps {
		images[i], err = prepareImage(s.Data, s.Kind)
		if err != nil {
			return nil, err
		}
	}

	pageRef, pageDict, err := pagetree.GetPage(r, pageIndex)
	if err != nil {
		return nil, err
	}
	if pageRef == 0 {
		return nil, &pdf.MalformedFileError{Err: errDirectPage}
	}
	box, err := pageBox(r, pageDict)
	if err != nil {
		return nil, err
	}

	version := pdf.GetVersion(r)
	if version < pdf.V1_4 {
		// soft masks need PDF 1.4
		version = pdf.V1_4
	}

	out := &bytes.Buffer{}
	w, err := pdf.NewWriter(out, version, nil)
	if err != nil {
		return nil, err
	}

	copier := pdfcopy.NewCopier(w, r)
	newPageRef := w.Alloc()
	copier.Redirect(pageRef, newPageRef)

	rm := pdf.NewResourceManager(w)
	toUser := rasterize.PageMatrix(box, pageRotation(r, pageDict)).Inv()
	newPage, err := stampPage(rm, r, copier, pageDict, toUser, stamps, images)
	if err != nil {
		return nil, err
	}
	err = rm.Close()
	if err != nil {
		return nil, err
	}
	err = w.Put(newPageRef, newPage)
	if err != nil {
		return nil, err
	}

	meta := r.GetMeta()
	newCatalog, err := pdfcopy.CopyStruct(copier, meta.Catalog)
	if err != nil {
		return nil, err
	}
	w.GetMeta().Catalog = newCatalog
	if meta.Info != nil {
		newInfo, err := pdfcopy.CopyStruct(copier, meta.Info)
		if err != nil {
			return nil, err
		}
		w.GetMeta().Info = newInfo
	}
	w.GetMeta().ID = meta.ID

	err = w.Close()
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// stampPage copies the page dictionary into the new file and adds the
// images to it.
func stampPage(rm *pdf.ResourceManager, r pdf.Getter, copier *pdfcopy.Copier, pageDict pdf.Dict, toUser matrix.Matrix, stamps []overlay.Stamp, images []*xImage) (pdf.Dict, error) {
	keep := pdf.Dict{}
	for key, val := range pageDict {
		if key != "Resources" && key != "Contents" && val != nil {
			keep[key] = val
		}
	}
	newPage, err := copier.CopyDict(keep)
	if err != nil {
		return nil, err
	}

	// Resources: copy everything, then extend the XObject dictionary.
	res, err := pdf.GetDict(r, pageDict["Resources"])
	if err != nil {
		return nil, err
	}
	keep = pdf.Dict{}
	for key, val := range res {
		if key != "XObject" && val != nil {
			keep[key] = val
		}
	}
	newRes, err := copier.CopyDict(keep)
	if err != nil {
		return nil, err
	}
	xobj, err := pdf.GetDict(r, res["XObject"])
	if err != nil {
		return nil, err
	}
	newXObj := pdf.Dict{}
	if xobj != nil {
		newXObj, err = copier.CopyDict(xobj)
		if err != nil {
			return nil, err
		}
	}

	ops := &bytes.Buffer{}
	ops.WriteString("Q\n")
	for i, s := range stamps {
		name := freeName(newXObj, i+1)
		ref, err := images[i].embed(rm)
		if err != nil {
			return nil, err
		}
		newXObj[name] = ref

		// Map the unit square to the stamp rectangle on the visible
		// page, then into user space of the possibly rotated page.
		M := matrix.Matrix{s.Rect.Width, 0, 0, s.Rect.Height, s.Rect.X, s.Rect.Y}.Mul(toUser)
		fmt.Fprintf(ops, "q %s %s %s %s %s %s cm /%s Do Q\n",
			num(M[0]), num(M[1]), num(M[2]), num(M[3]), num(M[4]), num(M[5]), name)
	}
	newRes["XObject"] = newXObj
	newPage["Resources"] = newRes

	// The original content is wrapped in q/Q, so that a modified graphics
	// state cannot affect the images: [q, original..., Q + images].
	var orig pdf.Array
	contents, err := pdf.Resolve(r, pageDict["Contents"])
	if err != nil {
		return nil, err
	}
	switch contents := contents.(type) {
	case nil:
		// empty page
	case pdf.Array:
		orig = contents
	default:
		orig = pdf.Array{pageDict["Contents"]}
	}
	newContents, err := copier.CopyArray(orig)
	if err != nil {
		return nil, err
	}

	pre, err := writeContent(rm.Out, []byte("q\n"))
	if err != nil {
		return nil, err
	}
	post, err := writeContent(rm.Out, ops.Bytes())
	if err != nil {
		return nil, err
	}
	all := pdf.Array{pre}
	for _, obj := range newContents {
		if obj != nil {
			all = append(all, obj)
		}
	}
	all = append(all, post)
	newPage["Contents"] = all

	return newPage, nil
}

// freeName returns an XObject resource name which is not yet in use.
func freeName(xobj pdf.Dict, n int) pdf.Name {
	for {
		name := pdf.Name("Ov" + strconv.Itoa(n))
		if _, used := xobj[name]; !used {
			return name
		}
		n++
	}
}

func writeContent(w *pdf.Writer, body []byte) (pdf.Reference, error) {
	ref := w.Alloc()
	stm, err := w.OpenStream(ref, nil, pdf.FilterCompress{})
	if err != nil {
		return 0, err
	}
	_, err = stm.Write(body)
	if err != nil {
		return 0, err
	}
	err = stm.Close()
	if err != nil {
		return 0, err
	}
	return ref, nil
}

// num formats a number for use in a content stream.
func num(x float64) string {
	x = math.Round(x*1e4) / 1e4
	if x == 0 {
		x = 0 // avoid "-0"
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

// xImage is an overlay image, ready to be written as an image XObject.
type xImage struct {
	kind   overlay.Format
	width  int
	height int

	// jpeg holds the original JPEG data, which is embedded unchanged.
	jpeg       []byte
	colorSpace pdf.Name

	// img holds the decoded PNG image.
	img image.Image
}

func prepareImage(data []byte, kind overlay.Format) (*xImage, error) {
	switch kind {
	case overlay.FormatJPEG:
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, &EmbedError{Kind: kind, Err: err}
		}
		var cs pdf.Name
		switch cfg.ColorModel {
		case color.GrayModel:
			cs = "DeviceGray"
		case color.CMYKModel:
			cs = "DeviceCMYK"
		default:
			cs = "DeviceRGB"
		}
		return &xImage{
			kind:       kind,
			width:      cfg.Width,
			height:     cfg.Height,
			jpeg:       data,
			colorSpace: cs,
		}, nil

	case overlay.FormatPNG:
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, &EmbedError{Kind: kind, Err: err}
		}
		b := img.Bounds()
		return &xImage{
			kind:   kind,
			width:  b.Dx(),
			height: b.Dy(),
			img:    img,
		}, nil

	default:
		return nil, &EmbedError{Kind: kind, Err: overlay.ErrUnsupportedFormat}
	}
}

// embed writes the image XObject and returns a reference to it.  JPEG
// data is copied unchanged; PNG images are handed to the library embedder,
// which adds a soft mask when the alpha channel is used.
func (im *xImage) embed(rm *pdf.ResourceManager) (pdf.Object, error) {
	if im.kind == overlay.FormatPNG {
		ref, _, err := pdf.ResourceManagerEmbed(rm, &pdfimage.PNG{Data: im.img})
		return ref, err
	}

	ref := rm.Out.Alloc()
	dict := pdf.Dict{
		"Type":             pdf.Name("XObject"),
		"Subtype":          pdf.Name("Image"),
		"Width":            pdf.Integer(im.width),
		"Height":           pdf.Integer(im.height),
		"BitsPerComponent": pdf.Integer(8),
		"ColorSpace":       im.colorSpace,
		"Filter":           pdf.Name("DCTDecode"),
	}
	if im.colorSpace == "DeviceCMYK" {
		// Adobe applications write inverted CMYK JPEG data.
		dict["Decode"] = pdf.Array{
			pdf.Integer(1), pdf.Integer(0), pdf.Integer(1), pdf.Integer(0),
			pdf.Integer(1), pdf.Integer(0), pdf.Integer(1), pdf.Integer(0),
		}
	}
	stm, err := rm.Out.OpenStream(ref, dict)
	if err != nil {
		return nil, err
	}
	_, err = stm.Write(im.jpeg)
	if err != nil {
		return nil, err
	}
	return ref, stm.Close()
}
