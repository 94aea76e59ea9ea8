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

package rasterize

import (
	"image"

	"seehuhn.de/go/geom/matrix"
	geompath "seehuhn.de/go/geom/path"
	"seehuhn.de/go/geom/vec"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/font"
	"seehuhn.de/go/pdf/font/dict"
	"seehuhn.de/go/pdf/font/glyphdata"
	"seehuhn.de/go/pdf/font/glyphdata/opentypeglyphs"
	"seehuhn.de/go/postscript/cid"
	"seehuhn.de/go/sfnt"
	"seehuhn.de/go/sfnt/glyph"
)

// embeddedFont is a font program extracted from a PDF file.
type embeddedFont struct {
	sf *sfnt.Font

	// cidToGID is set for CIDFonts with an explicit CID to GID map.
	cidToGID []glyph.ID
}

// fontCache holds the decoded embedded fonts of a page.  A nil entry
// records a font which could not be loaded.
type fontCache struct {
	r     pdf.Getter
	fonts map[font.Dict]*embeddedFont
}

func newFontCache(r pdf.Getter) *fontCache {
	return &fontCache{r: r, fonts: make(map[font.Dict]*embeddedFont)}
}

func (c *fontCache) get(f font.Embedded) *embeddedFont {
	ff, ok := f.(font.FromFile)
	if !ok {
		return nil
	}
	d := ff.GetDict()
	if ef, ok := c.fonts[d]; ok {
		return ef
	}
	ef := c.load(d)
	c.fonts[d] = ef
	return ef
}

// load extracts TrueType and OpenType font programs.  Type 1 and bare CFF
// fonts are drawn as boxes.
func (c *fontCache) load(d font.Dict) *embeddedFont {
	var tp glyphdata.Type
	var ref pdf.Reference
	switch d := d.(type) {
	case *dict.TrueType:
		tp, ref = d.FontType, d.FontRef
	case *dict.CIDFontType2:
		tp, ref = d.FontType, d.FontRef
	case *dict.CIDFontType0:
		tp, ref = d.FontType, d.FontRef
	}
	if ref == 0 {
		return nil
	}

	sf, err := opentypeglyphs.Extract(c.r, tp, ref)
	if err != nil || sf.Outlines == nil {
		return nil
	}
	ef := &embeddedFont{sf: sf}
	if info, ok := d.FontInfo().(*dict.FontInfoGlyfEmbedded); ok {
		ef.cidToGID = info.CIDToGID
	}
	return ef
}

// gid returns the glyph to show for a character.
func (ef *embeddedFont) gid(code cid.CID, text string) glyph.ID {
	if ef.cidToGID != nil {
		if int(code) < len(ef.cidToGID) {
			return ef.cidToGID[code]
		}
		return 0
	}

	gid := glyph.ID(code)
	if rr := []rune(text); len(rr) > 0 {
		if cmap, err := ef.sf.CMapTable.GetBest(); err == nil && cmap != nil {
			if g := cmap.Lookup(rr[0]); g != 0 {
				gid = g
			}
		}
	}
	return gid
}

func (p *painter) character(code cid.CID, text string) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}

	rd := p.rd
	if rd.TextFont == nil {
		return nil
	}

	b := p.img.Bounds()
	col := image.NewUniform(toGoColor(rd.FillColor))
	ef := p.fonts.get(rd.TextFont)
	if ef == nil {
		// Without outlines, show a box of half an em.
		M := matrix.Matrix{rd.TextFontSize * rd.TextHorizontalScaling, 0, 0, rd.TextFontSize, 0, rd.TextRise}.
			Mul(rd.TextMatrix).
			Mul(rd.CTM).
			Mul(p.device)
		corners := []vec.Vec2{{X: 0.05, Y: 0}, {X: 0.45, Y: 0}, {X: 0.45, Y: 0.7}, {X: 0.05, Y: 0.7}}
		p.raster.Reset(b.Dx(), b.Dy())
		for i, c := range corners {
			a := apply(M, c)
			if i == 0 {
				p.raster.MoveTo(float32(a.X), float32(a.Y))
			} else {
				p.raster.LineTo(float32(a.X), float32(a.Y))
			}
		}
		p.raster.ClosePath()
		p.raster.Draw(p.img, b, col, image.Point{})
		return nil
	}

	q := rd.TextFontSize / float64(ef.sf.UnitsPerEm)
	M := matrix.Matrix{q * rd.TextHorizontalScaling, 0, 0, q, 0, rd.TextRise}.
		Mul(rd.TextMatrix).
		Mul(rd.CTM).
		Mul(p.device)

	p.raster.Reset(b.Dx(), b.Dy())
	for cmd, pts := range ef.sf.Outlines.Path(ef.gid(code, text)).Transform(M) {
		switch cmd {
		case geompath.CmdMoveTo:
			p.raster.MoveTo(float32(pts[0].X), float32(pts[0].Y))
		case geompath.CmdLineTo:
			p.raster.LineTo(float32(pts[0].X), float32(pts[0].Y))
		case geompath.CmdQuadTo:
			p.raster.QuadTo(float32(pts[0].X), float32(pts[0].Y), float32(pts[1].X), float32(pts[1].Y))
		case geompath.CmdCubeTo:
			p.raster.CubeTo(float32(pts[0].X), float32(pts[0].Y), float32(pts[1].X), float32(pts[1].Y), float32(pts[2].X), float32(pts[2].Y))
		case geompath.CmdClose:
			p.raster.ClosePath()
		}
	}
	p.raster.Draw(p.img, b, col, image.Point{})
	return nil
}
