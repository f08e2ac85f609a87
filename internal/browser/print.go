package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/snapshot-service/internal/snapshot"
)

// minMargin stands in for zero: Chrome applies its own 0.4in default when a
// margin is omitted from the print call.
const minMargin = 1e-4

func margin(v float64) float64 {
	if v <= 0 {
		return minMargin
	}
	return v
}

func printParams(layout snapshot.PrintLayout) *page.PrintToPDFParams {
	p := page.PrintToPDF().
		WithLandscape(layout.Landscape).
		WithPrintBackground(layout.PrintBackground).
		WithScale(layout.Scale).
		WithPaperWidth(layout.PaperWidth).
		WithPaperHeight(layout.PaperHeight).
		WithMarginTop(margin(layout.MarginTop)).
		WithMarginRight(margin(layout.MarginRight)).
		WithMarginBottom(margin(layout.MarginBottom)).
		WithMarginLeft(margin(layout.MarginLeft)).
		WithPreferCSSPageSize(layout.PreferCSSPageSize)
	if layout.PageRanges != "" {
		p = p.WithPageRanges(layout.PageRanges)
	}
	if layout.DisplayHeaderFooter {
		p = p.WithDisplayHeaderFooter(true).
			WithHeaderTemplate(layout.HeaderTemplate).
			WithFooterTemplate(layout.FooterTemplate)
	}
	return p
}

func printAction(layout snapshot.PrintLayout, out *[]byte) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := printParams(layout).Do(ctx)
		if err != nil {
			return fmt.Errorf("print to pdf: %w", err)
		}
		*out = buf
		return nil
	})
}

func emulateAction(vp snapshot.Viewport, defaultUA, lang string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if vp.Width > 0 && vp.Height > 0 {
			if err := emulation.SetDeviceMetricsOverride(vp.Width, vp.Height, vp.DeviceScaleFactor, vp.Mobile).Do(ctx); err != nil {
				return fmt.Errorf("set device metrics: %w", err)
			}
		}
		ua := vp.UserAgent
		if ua == "" {
			ua = defaultUA
		}
		if ua != "" {
			override := emulation.SetUserAgentOverride(ua)
			if lang != "" {
				override = override.WithAcceptLanguage(lang)
			}
			if err := override.Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// loadAction brings the document into the tab: live pages are navigated to,
// HTML content is written into a blank frame.
func loadAction(req snapshot.RenderRequest) chromedp.Action {
	if req.Kind == snapshot.KindURL {
		return chromedp.Navigate(req.URL)
	}
	return chromedp.Tasks{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("get frame tree: %w", err)
			}
			if err := page.SetDocumentContent(tree.Frame.ID, req.Content).Do(ctx); err != nil {
				return fmt.Errorf("set document content: %w", err)
			}
			return nil
		}),
	}
}
