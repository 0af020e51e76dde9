package chartsvc

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"io/ioutil"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/messengermaksym/diploma-project/core"
	"github.com/messengermaksym/diploma-project/core/report"
)

const (
	chartWidth  = 900
	chartHeight = 480

	marginLeft   = 70.0
	marginRight  = 30.0
	marginTop    = 60.0
	marginBottom = 90.0

	axisMax = 10.0 // grades live on a 0..10 scale
)

type ggRenderer struct {
	face      font.Face
	labelFace font.Face
}

var _ report.ChartRenderer = (*ggRenderer)(nil)

// NewRenderer builds a PNG bar chart renderer. A TTF font can be supplied
// via conf.ChartFontPath; otherwise a built-in bitmap face is used.
func NewRenderer(conf *core.Config) (report.ChartRenderer, error) {
	rdr := &ggRenderer{face: basicfont.Face7x13, labelFace: basicfont.Face7x13}
	if conf.ChartFontPath != "" {
		raw, err := ioutil.ReadFile(conf.ChartFontPath)
		if err != nil {
			return nil, errors.Wrap(err, "reading chart font")
		}
		fnt, err := truetype.Parse(raw)
		if err != nil {
			return nil, errors.Wrap(err, "parsing chart font")
		}
		rdr.face = truetype.NewFace(fnt, &truetype.Options{Size: 18})
		rdr.labelFace = truetype.NewFace(fnt, &truetype.Options{Size: 13})
	}
	return rdr, nil
}

func (rdr *ggRenderer) BarChart(title string, series []report.LabeledValue) (string, error) {
	if len(series) == 0 {
		return "", nil
	}

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	plotW := float64(chartWidth) - marginLeft - marginRight
	plotH := float64(chartHeight) - marginTop - marginBottom

	// title
	dc.SetFontFace(rdr.face)
	dc.SetRGB(0.15, 0.15, 0.15)
	dc.DrawStringAnchored(title, float64(chartWidth)/2, marginTop/2, 0.5, 0.5)

	dc.SetFontFace(rdr.labelFace)

	// y axis with grid lines at every whole grade
	for i := 0; i <= int(axisMax); i++ {
		y := marginTop + plotH - plotH*float64(i)/axisMax
		dc.SetRGB(0.85, 0.85, 0.85)
		dc.DrawLine(marginLeft, y, marginLeft+plotW, y)
		dc.SetLineWidth(1)
		dc.Stroke()
		dc.SetRGB(0.35, 0.35, 0.35)
		dc.DrawStringAnchored(fmt.Sprintf("%d", i), marginLeft-10, y, 1, 0.5)
	}

	// bars
	slot := plotW / float64(len(series))
	barW := slot * 0.6
	for i, lv := range series {
		val := lv.Value
		if val < 0 {
			val = 0
		} else if val > axisMax {
			val = axisMax
		}
		h := plotH * val / axisMax
		x := marginLeft + float64(i)*slot + (slot-barW)/2
		y := marginTop + plotH - h

		dc.SetRGB(0.26, 0.45, 0.76)
		dc.DrawRectangle(x, y, barW, h)
		dc.Fill()

		dc.SetRGB(0.15, 0.15, 0.15)
		dc.DrawStringAnchored(fmt.Sprintf("%.2f", lv.Value), x+barW/2, y-10, 0.5, 0.5)
		dc.DrawStringAnchored(truncateLabel(lv.Label), x+barW/2, marginTop+plotH+18, 0.5, 0.5)
	}

	// axes
	dc.SetRGB(0.35, 0.35, 0.35)
	dc.SetLineWidth(1.5)
	dc.DrawLine(marginLeft, marginTop, marginLeft, marginTop+plotH)
	dc.DrawLine(marginLeft, marginTop+plotH, marginLeft+plotW, marginTop+plotH)
	dc.Stroke()

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return "", errors.Wrap(err, "encoding chart")
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func truncateLabel(lbl string) string {
	const max = 18
	if len(lbl) <= max {
		return lbl
	}
	return lbl[:max-3] + "..."
}
