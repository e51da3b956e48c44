// Package respond packages extraction output for download: a single
// markdown file when the result is one document, a zip archive when it
// has multiple sections.
package respond

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

// Section is one named piece of a multi-part result.
type Section struct {
	Filename string
	Content  string
}

// Payload is a ready-to-send download body.
type Payload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// BaseName strips the extension from an uploaded filename and makes it
// safe for a Content-Disposition header.
func BaseName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "document"
	}
	return url.PathEscape(base)
}

// SingleFile packages one markdown document.
func SingleFile(content, baseName, suffix string) Payload {
	return Payload{
		Data:        []byte(content),
		ContentType: "text/markdown; charset=utf-8",
		Filename:    baseName + suffix + ".md",
	}
}

// ZipSections packages multiple sections into one deflated archive.
func ZipSections(sections []Section, baseName, suffix string) (Payload, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, s := range sections {
		w, err := zw.Create(s.Filename)
		if err != nil {
			zw.Close()
			return Payload{}, fmt.Errorf("failed to add %q to archive: %w", s.Filename, err)
		}
		if _, err := w.Write([]byte(s.Content)); err != nil {
			zw.Close()
			return Payload{}, fmt.Errorf("failed to write %q: %w", s.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return Payload{}, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return Payload{
		Data:        buf.Bytes(),
		ContentType: "application/zip",
		Filename:    baseName + suffix + "_sections.zip",
	}, nil
}

// Download packages a result: one section downloads as a bare file,
// several download as a zip.
func Download(sections []Section, baseName, suffix string) (Payload, error) {
	if len(sections) == 1 {
		return SingleFile(sections[0].Content, baseName, suffix), nil
	}
	return ZipSections(sections, baseName, suffix)
}

// Write sends the payload as an attachment.
func Write(w http.ResponseWriter, p Payload) error {
	w.Header().Set("Content-Type", p.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+p.Filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Data)))
	_, err := w.Write(p.Data)
	return err
}
