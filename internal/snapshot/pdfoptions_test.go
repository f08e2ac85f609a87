package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFOptionsResolveDefaults(t *testing.T) {
	t.Parallel()

	layout, err := PDFOptions{}.Resolve()
	require.NoError(t, err)
	assert.InDelta(t, 8.27, layout.PaperWidth, 1e-9)
	assert.InDelta(t, 11.7, layout.PaperHeight, 1e-9)
	assert.InDelta(t, 1.0, layout.Scale, 1e-9)
	assert.True(t, layout.PrintBackground)
	assert.False(t, layout.Landscape)
	assert.Zero(t, layout.MarginTop)
}

func TestPDFOptionsResolveFormatIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	layout, err := PDFOptions{Format: "Letter", Landscape: true}.Resolve()
	require.NoError(t, err)
	assert.InDelta(t, 8.5, layout.PaperWidth, 1e-9)
	assert.InDelta(t, 11.0, layout.PaperHeight, 1e-9)
	assert.True(t, layout.Landscape)
}

func TestPDFOptionsResolveExplicitSize(t *testing.T) {
	t.Parallel()

	layout, err := PDFOptions{Format: "A3", Width: "210mm", Height: "297mm"}.Resolve()
	require.NoError(t, err)
	assert.InDelta(t, 210/25.4, layout.PaperWidth, 1e-9, "width wins over format")
	assert.InDelta(t, 297/25.4, layout.PaperHeight, 1e-9)
}

func TestPDFOptionsResolveMargins(t *testing.T) {
	t.Parallel()

	layout, err := PDFOptions{Margin: Margin{Top: "1in", Right: "2.54cm", Bottom: "96px", Left: "48"}}.Resolve()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, layout.MarginTop, 1e-9)
	assert.InDelta(t, 1.0, layout.MarginRight, 1e-9)
	assert.InDelta(t, 1.0, layout.MarginBottom, 1e-9)
	assert.InDelta(t, 0.5, layout.MarginLeft, 1e-9)
}

func TestPDFOptionsResolvePrintBackgroundOverride(t *testing.T) {
	t.Parallel()

	off := false
	layout, err := PDFOptions{PrintBackground: &off}.Resolve()
	require.NoError(t, err)
	assert.False(t, layout.PrintBackground)
}

func TestPDFOptionsResolveCarriesTemplates(t *testing.T) {
	t.Parallel()

	layout, err := PDFOptions{
		DisplayHeaderFooter: true,
		HeaderTemplate:      "<span class=title></span>",
		FooterTemplate:      "<span class=pageNumber></span>",
		PageRanges:          " 1-3 ",
		PreferCSSPageSize:   true,
		Scale:               0.5,
	}.Resolve()
	require.NoError(t, err)
	assert.True(t, layout.DisplayHeaderFooter)
	assert.Equal(t, "<span class=title></span>", layout.HeaderTemplate)
	assert.Equal(t, "<span class=pageNumber></span>", layout.FooterTemplate)
	assert.Equal(t, "1-3", layout.PageRanges)
	assert.True(t, layout.PreferCSSPageSize)
	assert.InDelta(t, 0.5, layout.Scale, 1e-9)
}

func TestPDFOptionsResolveErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]PDFOptions{
		"unknown format":  {Format: "B5"},
		"scale too small": {Scale: 0.05},
		"scale too big":   {Scale: 2.5},
		"width only":      {Width: "8in"},
		"zero height":     {Width: "8in", Height: "0"},
		"bad margin":      {Margin: Margin{Left: "wide"}},
		"negative margin": {Margin: Margin{Top: "-1cm"}},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := opts.Resolve()
			require.ErrorIs(t, err, ErrInvalidPDFOption)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestParseLength(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
	}{
		{"96px", 1},
		{"96", 1},
		{"2in", 2},
		{"25.4mm", 1},
		{"5.08cm", 2},
		{" 1 IN ", 1},
		{"0", 0},
	}
	for _, tc := range cases {
		got, err := ParseLength(tc.in)
		require.NoError(t, err, tc.in)
		assert.InDelta(t, tc.want, got, 1e-9, tc.in)
	}

	for _, bad := range []string{"", "px", "abc", "NaN", "Inf", "-2px"} {
		_, err := ParseLength(bad)
		assert.ErrorIs(t, err, ErrInvalidPDFOption, bad)
	}
}
