package snapshot

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Margin holds CSS lengths for each side of the page.
type Margin struct {
	Top    string `json:"top,omitempty"`
	Right  string `json:"right,omitempty"`
	Bottom string `json:"bottom,omitempty"`
	Left   string `json:"left,omitempty"`
}

// PDFOptions is the print configuration accepted in request bodies. Field
// names follow the common headless-browser JSON shape.
type PDFOptions struct {
	Format              string  `json:"format,omitempty"`
	Width               string  `json:"width,omitempty"`
	Height              string  `json:"height,omitempty"`
	Landscape           bool    `json:"landscape,omitempty"`
	PrintBackground     *bool   `json:"printBackground,omitempty"`
	Scale               float64 `json:"scale,omitempty"`
	Margin              Margin  `json:"margin,omitempty"`
	DisplayHeaderFooter bool    `json:"displayHeaderFooter,omitempty"`
	HeaderTemplate      string  `json:"headerTemplate,omitempty"`
	FooterTemplate      string  `json:"footerTemplate,omitempty"`
	PageRanges          string  `json:"pageRanges,omitempty"`
	PreferCSSPageSize   bool    `json:"preferCSSPageSize,omitempty"`
}

// PrintLayout is the resolved page geometry, in inches.
type PrintLayout struct {
	PaperWidth          float64
	PaperHeight         float64
	MarginTop           float64
	MarginRight         float64
	MarginBottom        float64
	MarginLeft          float64
	Scale               float64
	Landscape           bool
	PrintBackground     bool
	DisplayHeaderFooter bool
	HeaderTemplate      string
	FooterTemplate      string
	PageRanges          string
	PreferCSSPageSize   bool
}

// DefaultFormat is used when neither a format nor explicit dimensions are set.
const DefaultFormat = "A4"

const (
	minScale = 0.1
	maxScale = 2.0
)

type paperSize struct {
	width  float64
	height float64
}

// paperFormats lists paper sizes in inches.
var paperFormats = map[string]paperSize{
	"letter":  {8.5, 11},
	"legal":   {8.5, 14},
	"tabloid": {11, 17},
	"ledger":  {17, 11},
	"a0":      {33.1, 46.8},
	"a1":      {23.4, 33.1},
	"a2":      {16.54, 23.4},
	"a3":      {11.7, 16.54},
	"a4":      {8.27, 11.7},
	"a5":      {5.83, 8.27},
	"a6":      {4.13, 5.83},
}

var unitToInches = map[string]float64{
	"px": 1.0 / 96.0,
	"in": 1,
	"cm": 1 / 2.54,
	"mm": 1 / 25.4,
}

// Resolve validates the options and converts them into a PrintLayout.
func (o PDFOptions) Resolve() (PrintLayout, error) {
	layout := PrintLayout{
		Scale:               1,
		Landscape:           o.Landscape,
		PrintBackground:     true,
		DisplayHeaderFooter: o.DisplayHeaderFooter,
		HeaderTemplate:      o.HeaderTemplate,
		FooterTemplate:      o.FooterTemplate,
		PageRanges:          strings.TrimSpace(o.PageRanges),
		PreferCSSPageSize:   o.PreferCSSPageSize,
	}
	if o.PrintBackground != nil {
		layout.PrintBackground = *o.PrintBackground
	}
	if o.Scale != 0 {
		if o.Scale < minScale || o.Scale > maxScale {
			return PrintLayout{}, fmt.Errorf("%w: scale %.2f must be between %.1f and %.1f",
				ErrInvalidPDFOption, o.Scale, minScale, maxScale)
		}
		layout.Scale = o.Scale
	}

	size, err := o.paperSize()
	if err != nil {
		return PrintLayout{}, err
	}
	layout.PaperWidth, layout.PaperHeight = size.width, size.height

	sides := []struct {
		name  string
		value string
		dst   *float64
	}{
		{"top", o.Margin.Top, &layout.MarginTop},
		{"right", o.Margin.Right, &layout.MarginRight},
		{"bottom", o.Margin.Bottom, &layout.MarginBottom},
		{"left", o.Margin.Left, &layout.MarginLeft},
	}
	for _, side := range sides {
		if side.value == "" {
			continue
		}
		v, err := ParseLength(side.value)
		if err != nil {
			return PrintLayout{}, fmt.Errorf("margin %s: %w", side.name, err)
		}
		*side.dst = v
	}
	return layout, nil
}

func (o PDFOptions) paperSize() (paperSize, error) {
	if o.Width != "" || o.Height != "" {
		if o.Width == "" || o.Height == "" {
			return paperSize{}, fmt.Errorf("%w: width and height must be set together", ErrInvalidPDFOption)
		}
		w, err := ParseLength(o.Width)
		if err != nil {
			return paperSize{}, fmt.Errorf("width: %w", err)
		}
		h, err := ParseLength(o.Height)
		if err != nil {
			return paperSize{}, fmt.Errorf("height: %w", err)
		}
		if w == 0 || h == 0 {
			return paperSize{}, fmt.Errorf("%w: width and height must be positive", ErrInvalidPDFOption)
		}
		return paperSize{width: w, height: h}, nil
	}
	format := o.Format
	if format == "" {
		format = DefaultFormat
	}
	size, ok := paperFormats[strings.ToLower(format)]
	if !ok {
		return paperSize{}, fmt.Errorf("%w: unknown format %q", ErrInvalidPDFOption, format)
	}
	return size, nil
}

// ParseLength converts a CSS length (px, in, cm, mm; bare numbers are px)
// into inches.
func ParseLength(raw string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("%w: empty length", ErrInvalidPDFOption)
	}
	factor := unitToInches["px"]
	for unit, f := range unitToInches {
		if strings.HasSuffix(s, unit) {
			factor = f
			s = strings.TrimSpace(strings.TrimSuffix(s, unit))
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: bad length %q", ErrInvalidPDFOption, raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: negative length %q", ErrInvalidPDFOption, raw)
	}
	return v * factor, nil
}
