package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/snapshot-service/internal/snapshot"
)

type renderFlags struct {
	url      string
	htmlFile string
	baseURL  string
	out      string
	pdfJSON  string
	snapJSON string
}

func newRenderCmd() *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one page to a PDF file",
		Example: `  snapshot render --url https://example.com --out example.pdf
  snapshot render --html page.html --base-url https://example.com/ --out page.pdf`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := envFrom(cmd.Context())
			if err != nil {
				return err
			}
			app, err := build(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return fmt.Errorf("build app: %w", err)
			}
			defer app.Close(context.WithoutCancel(cmd.Context()))

			pdf, err := renderOne(cmd.Context(), app.Service(), f)
			if err != nil {
				return err
			}
			if err := os.WriteFile(f.out, pdf, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", f.out, err)
			}
			e.logger.Info("pdf written", zap.String("path", f.out), zap.Int("bytes", len(pdf)))
			return nil
		},
	}
	cmd.Flags().StringVar(&f.url, "url", "", "page URL to render")
	cmd.Flags().StringVar(&f.htmlFile, "html", "", "HTML file to render")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "base URL for relative links in --html")
	cmd.Flags().StringVar(&f.out, "out", "download.pdf", "output PDF path")
	cmd.Flags().StringVar(&f.pdfJSON, "pdf-options", "", `PDF options as JSON, e.g. '{"format":"Letter"}'`)
	cmd.Flags().StringVar(&f.snapJSON, "snapshot-options", "", `snapshot options as JSON, e.g. '{"scrollTimes":5}'`)
	cmd.MarkFlagsMutuallyExclusive("url", "html")
	cmd.MarkFlagsOneRequired("url", "html")
	return cmd
}

type pageRenderer interface {
	ToPDF(ctx context.Context, content, baseURL string, pdf snapshot.PDFOptions, opts snapshot.SnapshotOptions) ([]byte, error)
	URLToPDF(ctx context.Context, rawURL string, pdf snapshot.PDFOptions, opts snapshot.SnapshotOptions) ([]byte, error)
}

func renderOne(ctx context.Context, svc pageRenderer, f renderFlags) ([]byte, error) {
	var pdfOpts snapshot.PDFOptions
	if f.pdfJSON != "" {
		if err := json.Unmarshal([]byte(f.pdfJSON), &pdfOpts); err != nil {
			return nil, fmt.Errorf("parse --pdf-options: %w", err)
		}
	}
	var snapOpts snapshot.SnapshotOptions
	if f.snapJSON != "" {
		if err := json.Unmarshal([]byte(f.snapJSON), &snapOpts); err != nil {
			return nil, fmt.Errorf("parse --snapshot-options: %w", err)
		}
	}
	switch {
	case f.url != "":
		return svc.URLToPDF(ctx, f.url, pdfOpts, snapOpts)
	case f.htmlFile != "":
		content, err := os.ReadFile(f.htmlFile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.htmlFile, err)
		}
		return svc.ToPDF(ctx, string(content), f.baseURL, pdfOpts, snapOpts)
	default:
		return nil, errors.New("one of --url or --html is required")
	}
}
