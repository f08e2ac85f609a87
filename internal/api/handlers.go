package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/snapshot-service/internal/logging"
	"github.com/JakeFAU/snapshot-service/internal/snapshot"
)

const (
	maxBodyBytes    = 20 << 20
	defaultPDFName  = "download.pdf"
	defaultZIPName  = "download.zip"
	contentTypePDF  = "application/x-pdf"
	contentTypeZIP  = "application/zip"
	renderFailedMsg = "failed to generate PDF"
)

type contentRequest struct {
	Content        string                   `json:"content"`
	BaseURL        string                   `json:"baseURL"`
	FileName       string                   `json:"fileName"`
	PDFOption      snapshot.PDFOptions      `json:"pdfOption"`
	SnapshotOption snapshot.SnapshotOptions `json:"snapshotOption"`
}

type urlRequest struct {
	URL            string                   `json:"url"`
	FileName       string                   `json:"fileName"`
	PDFOption      snapshot.PDFOptions      `json:"pdfOption"`
	SnapshotOption snapshot.SnapshotOptions `json:"snapshotOption"`
}

type pageRequest struct {
	URL            string                   `json:"url"`
	Content        string                   `json:"content"`
	BaseURL        string                   `json:"baseURL"`
	FileName       string                   `json:"fileName"`
	PDFOption      snapshot.PDFOptions      `json:"pdfOption"`
	SnapshotOption snapshot.SnapshotOptions `json:"snapshotOption"`
}

type discoverRequest struct {
	Seed     string `json:"seed"`
	MaxPages int    `json:"maxPages"`
	SameHost *bool  `json:"sameHost"`
}

type bundleRequest struct {
	URLs           []string                 `json:"urls"`
	Pages          []pageRequest            `json:"pages"`
	Discover       *discoverRequest         `json:"discover"`
	FileName       string                   `json:"fileName"`
	PDFOption      snapshot.PDFOptions      `json:"pdfOption"`
	SnapshotOption snapshot.SnapshotOptions `json:"snapshotOption"`
}

func (b bundleRequest) toBundle() snapshot.BundleRequest {
	out := snapshot.BundleRequest{
		Pages:    make([]snapshot.Page, 0, len(b.URLs)+len(b.Pages)),
		PDF:      b.PDFOption,
		Snapshot: b.SnapshotOption,
	}
	for _, u := range b.URLs {
		out.Pages = append(out.Pages, snapshot.Page{Kind: snapshot.KindURL, URL: u})
	}
	for _, p := range b.Pages {
		page := snapshot.Page{
			Kind:     snapshot.KindURL,
			URL:      p.URL,
			FileName: p.FileName,
			PDF:      p.PDFOption,
			Snapshot: p.SnapshotOption,
		}
		if p.Content != "" {
			page.Kind = snapshot.KindContent
			page.Content = p.Content
			page.BaseURL = p.BaseURL
		}
		out.Pages = append(out.Pages, page)
	}
	if b.Discover != nil {
		sameHost := true
		if b.Discover.SameHost != nil {
			sameHost = *b.Discover.SameHost
		}
		out.Discover = &snapshot.DiscoverRequest{
			Seed:     b.Discover.Seed,
			MaxPages: b.Discover.MaxPages,
			SameHost: sameHost,
		}
	}
	return out
}

func (s *Server) toPDF(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !s.decode(w, r, &req) {
		return
	}
	pdf, err := s.svc.ToPDF(r.Context(), req.Content, req.BaseURL, req.PDFOption, req.SnapshotOption)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	writeFile(w, contentTypePDF, attachmentName(req.FileName, defaultPDFName), pdf)
}

func (s *Server) urlToPDF(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	pdf, err := s.svc.URLToPDF(r.Context(), req.URL, req.PDFOption, req.SnapshotOption)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	writeFile(w, contentTypePDF, attachmentName(req.FileName, defaultPDFName), pdf)
}

func (s *Server) urlsToZIP(w http.ResponseWriter, r *http.Request) {
	var req bundleRequest
	if !s.decode(w, r, &req) {
		return
	}
	archive, err := s.svc.Bundle(r.Context(), req.toBundle())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	writeFile(w, contentTypeZIP, attachmentName(req.FileName, defaultZIPName), archive)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// renderError maps validation failures to 400 and hides everything else
// behind a generic 500.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.FromContext(r.Context(), s.logger)
	if snapshot.IsValidation(err) {
		logger.Info("rejected snapshot request", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Error("snapshot failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, renderFailedMsg)
}

func writeFile(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment;filename="+name)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		zap.L().Debug("write file failed", zap.Error(err))
	}
}

// attachmentName reduces raw to a header-safe base name, falling back to def.
func attachmentName(raw, def string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return -1
		case r == '"' || r == ';' || r == ',':
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return def
	}
	return name
}
