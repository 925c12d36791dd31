package render

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

const (
	pngFontSize = 14.0
	pngMargin   = 16.0
	pngPad      = 8.0
	pngGap      = 6.0
)

func monoFace(size float64) (font.Face, error) {
	ttf, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: parse font: %w", err)
	}
	return truetype.NewFace(ttf, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}

type pngBox struct {
	label string
	index string
	w     float64
	cell  Cell
}

type pngRow struct {
	title string
	boxes []pngBox
	w     float64
}

// drawFrame paints f onto a new context sized to fit it.
func drawFrame(f Frame, th Theme) (*gg.Context, error) {
	face, err := monoFace(pngFontSize)
	if err != nil {
		return nil, err
	}
	measure := gg.NewContext(1, 1)
	measure.SetFontFace(face)
	_, lineH := measure.MeasureString("Mg")
	lineH *= 1.6
	boxH := lineH + pngPad

	status := fmt.Sprintf("%s %d/%d", f.Target, max(f.Step+1, 0), f.Len)
	if f.Done {
		status = fmt.Sprintf("%s %d/%d done", f.Target, f.Len, f.Len)
	}
	width, _ := measure.MeasureString(status)

	rows := make([]pngRow, 0, len(f.Views))
	height := pngMargin*2 + lineH
	for _, v := range f.Views {
		r := pngRow{title: v.Name + " (" + string(v.Kind) + ")"}
		if len(v.Cells) == 0 {
			r.title = v.Name + " = " + v.Value
		}
		r.w, _ = measure.MeasureString(r.title)
		height += lineH

		if len(v.Cells) > 0 {
			x := 0.0
			for _, c := range v.Cells {
				label := c.Label
				if c.Key != "" {
					label = c.Key + ": " + c.Label
				}
				lw, _ := measure.MeasureString(label)
				b := pngBox{label: label, index: strconv.Itoa(c.Index), w: lw + pngPad*2, cell: c}
				r.boxes = append(r.boxes, b)
				x += b.w + pngGap
			}
			r.w = math.Max(r.w, x)
			height += boxH + lineH
		}
		height += pngGap
		width = math.Max(width, r.w)
		rows = append(rows, r)
	}
	width += pngMargin * 2

	dc := gg.NewContext(int(math.Ceil(width)), int(math.Ceil(height)))
	dc.SetFontFace(face)
	dc.SetHexColor(string(th.Background))
	dc.Clear()

	y := pngMargin
	dc.SetHexColor(string(th.Muted))
	dc.DrawStringAnchored(status, pngMargin, y+lineH/2, 0, 0.5)
	y += lineH

	for _, r := range rows {
		dc.SetHexColor(string(th.Title))
		dc.DrawStringAnchored(r.title, pngMargin, y+lineH/2, 0, 0.5)
		y += lineH
		if len(r.boxes) == 0 {
			y += pngGap
			continue
		}

		x := pngMargin
		for _, b := range r.boxes {
			border := th.Muted
			text := th.Text
			switch {
			case b.cell.Current:
				border, text = th.Current, th.Current
			case b.cell.Accessed:
				border = th.Accessed
			}
			dc.SetLineWidth(1.5)
			dc.SetHexColor(string(border))
			dc.DrawRoundedRectangle(x, y, b.w, boxH, 4)
			dc.Stroke()

			dc.SetHexColor(string(text))
			dc.DrawStringAnchored(b.label, x+b.w/2, y+boxH/2, 0.5, 0.5)
			dc.SetHexColor(string(th.Muted))
			dc.DrawStringAnchored(b.index, x+b.w/2, y+boxH+lineH/2, 0.5, 0.5)
			x += b.w + pngGap
		}
		y += boxH + lineH + pngGap
	}
	return dc, nil
}

// EncodePNG writes f as a PNG image.
func EncodePNG(w io.Writer, f Frame, th Theme) error {
	dc, err := drawFrame(f, th)
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

// SavePNG writes f to path as a PNG image.
func SavePNG(f Frame, th Theme, path string) error {
	dc, err := drawFrame(f, th)
	if err != nil {
		return err
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("render: save %s: %w", path, err)
	}
	return nil
}
