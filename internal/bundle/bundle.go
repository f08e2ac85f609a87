// Package bundle packs rendered PDFs into a ZIP archive.
package bundle

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Entry is one file in the archive.
type Entry struct {
	Name string
	Data []byte
}

// modTime is fixed so identical inputs produce identical archives.
var modTime = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Write streams entries to w as a ZIP archive, in order.
func Write(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		return errors.New("bundle: no entries")
	}
	zw := zip.NewWriter(w)
	for _, e := range entries {
		hdr := &zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: modTime,
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("bundle: create %s: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return fmt.Errorf("bundle: write %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("bundle: close: %w", err)
	}
	return nil
}

// Namer hands out unique, flat .pdf entry names.
type Namer struct {
	used map[string]int
}

// NewNamer returns an empty Namer.
func NewNamer() *Namer {
	return &Namer{used: make(map[string]int)}
}

// Name returns preferred (or fallback when preferred is unusable) cleaned
// to a base name with a .pdf extension. Repeated names get -2, -3, ...
// before the extension.
func (n *Namer) Name(preferred, fallback string) string {
	name := Sanitize(preferred)
	if name == "" {
		name = Sanitize(fallback)
	}
	if name == "" {
		name = "download.pdf"
	}
	key := strings.ToLower(name)
	count := n.used[key]
	n.used[key] = count + 1
	if count == 0 {
		return name
	}
	stem := strings.TrimSuffix(name, path.Ext(name))
	for i := count + 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d.pdf", stem, i)
		ck := strings.ToLower(candidate)
		if _, taken := n.used[ck]; !taken {
			n.used[ck] = 1
			return candidate
		}
	}
}

// Sanitize strips directories and characters that are unsafe in archive
// entry names, and ensures a .pdf suffix. It returns "" when nothing usable
// remains.
func Sanitize(raw string) string {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	s = path.Base(s)
	if s == "." || s == "/" || s == ".." {
		return ""
	}
	s = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return -1
		case strings.ContainsRune(`:*?"<>|`, r):
			return '_'
		}
		return r
	}, s)
	s = strings.Trim(s, ". ")
	if s == "" || strings.EqualFold(s, "pdf") {
		return ""
	}
	if !strings.EqualFold(path.Ext(s), ".pdf") {
		s += ".pdf"
	}
	return s
}
