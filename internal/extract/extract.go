// Package extract pulls plain text out of documents farmers attach to a
// question: land records, scheme circulars, soil test reports.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/apperr"
)

// MaxUploadBytes is the largest accepted upload.
const MaxUploadBytes = 50 << 20

// allowed maps accepted extensions to their extractor.
var allowed = map[string]func([]byte) (string, error){
	".txt":  plainText,
	".pdf":  pdfText,
	".docx": docxText,
}

// Supported reports whether a file name has an accepted extension.
func Supported(name string) bool {
	_, ok := allowed[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Text extracts the text of the file called name. Unsupported types,
// oversized files, and unreadable content are [apperr.KindInvalidInput].
func Text(name string, data []byte) (string, error) {
	const op = "extract.Text"

	ext := strings.ToLower(filepath.Ext(name))
	fn, ok := allowed[ext]
	if !ok {
		return "", apperr.Newf(apperr.KindInvalidInput, op, "unsupported file type %q (allowed: pdf, docx, txt)", ext)
	}
	if len(data) == 0 {
		return "", apperr.Newf(apperr.KindInvalidInput, op, "file %q is empty", name)
	}
	if len(data) > MaxUploadBytes {
		return "", apperr.Newf(apperr.KindInvalidInput, op, "file %q is %d bytes, limit is %d", name, len(data), MaxUploadBytes)
	}

	text, err := fn(data)
	if err != nil {
		return "", apperr.New(apperr.KindInvalidInput, op, fmt.Errorf("read %s: %w", name, err))
	}
	return normalizeSpace(text), nil
}

func plainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text file is not valid UTF-8")
	}
	return string(data), nil
}

func pdfText(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("pdf text: %w", err)
	}
	return buf.String(), nil
}

func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return wordText(io.LimitReader(rc, MaxUploadBytes))
	}
	return "", fmt.Errorf("docx has no word/document.xml")
}

// wordText streams a WordprocessingML part and keeps every w:t run, wherever
// it sits: paragraphs, table cells, hyperlinks, text boxes. Paragraphs end a
// line. Markup-compatibility fallbacks repeat their choice and are skipped.
func wordText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		sb       strings.Builder
		inText   bool
		fallback int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "Fallback":
				fallback++
			case "t":
				inText = fallback == 0
			case "tab":
				if fallback == 0 {
					sb.WriteByte('\t')
				}
			case "br", "cr":
				if fallback == 0 {
					sb.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "Fallback":
				fallback--
			case "t":
				inText = false
			case "p":
				if fallback == 0 {
					sb.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
}

// normalizeSpace collapses runs of blank lines and trims each line.
func normalizeSpace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	blank := false
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
