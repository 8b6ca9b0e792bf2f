// Package pdfextract extracts page-ordered text from a PDF byte stream
// without native dependencies: it walks the object table for page
// objects in ascending object-number order (an approximation of document
// order), inflates each page's content stream(s),
// and decodes the Tj/TJ text-showing operators into the page's text. It
// does not handle font re-encoding, so it works best on PDFs produced by
// text-layer-preserving tools (the common case for administrative
// document scans re-OCR'd to a text layer).
package pdfextract

import (
	"bytes"
	"compress/zlib"
	"io"
	"regexp"
	"sort"
	"strconv"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

// Extractor implements rag.PageExtractor over raw PDF bytes.
type Extractor struct{}

// New constructs the stdlib PDF extractor.
func New() *Extractor { return &Extractor{} }

var (
	reHeader      = regexp.MustCompile(`^%PDF-\d\.\d`)
	reObjStart    = regexp.MustCompile(`(\d+)\s+(\d+)\s+obj`)
	reStream      = regexp.MustCompile(`(?s)stream\r?\n(.*?)endstream`)
	reContentsRef = regexp.MustCompile(`/Contents\s+(\d+)\s+\d+\s+R`)
	reContentsArr = regexp.MustCompile(`/Contents\s*\[(.*?)\]`)
	reIntRef      = regexp.MustCompile(`(\d+)\s+\d+\s+R`)
	reIsPage      = regexp.MustCompile(`/Type\s*/Page[^s]`)
	reFlate       = regexp.MustCompile(`/Filter\s*/FlateDecode`)
	reTj          = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)
	reTJArray     = regexp.MustCompile(`(?s)\[(.*?)\]\s*TJ`)
	reTJString    = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)
	reEscape      = regexp.MustCompile(`\\([()\\nrtbf]|[0-7]{1,3})`)
)

// ExtractPages implements rag.PageExtractor.
func (e *Extractor) ExtractPages(data []byte) ([]rag.PageText, bool, error) {
	if !reHeader.Match(data) {
		return nil, false, nil
	}

	objects := splitObjects(data)
	if len(objects) == 0 {
		return nil, false, nil
	}

	pageIDs := orderedPageIDs(objects)
	if len(pageIDs) == 0 {
		// Degenerate single-stream PDF: treat the whole document as one page.
		text := extractAllText(data)
		if text == "" {
			return []rag.PageText{}, true, nil
		}
		return []rag.PageText{{PageNumber: 1, Text: text}}, true, nil
	}

	pages := make([]rag.PageText, 0, len(pageIDs))
	for i, id := range pageIDs {
		pageObj := objects[id]
		text := extractPageText(pageObj, objects)
		pages = append(pages, rag.PageText{PageNumber: i + 1, Text: text})
	}
	return pages, true, nil
}

// splitObjects maps object number -> raw object body (between "N G obj"
// and the following "endobj").
func splitObjects(data []byte) map[int][]byte {
	objects := make(map[int][]byte)
	matches := reObjStart.FindAllSubmatchIndex(data, -1)
	for i, m := range matches {
		start := m[1]
		end := len(data)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		num, _ := strconv.Atoi(string(data[m[2]:m[3]]))
		objects[num] = data[start:end]
	}
	return objects
}

// orderedPageIDs finds every object whose dictionary declares /Type /Page
// (not /Pages) and returns their object numbers in ascending numeric
// order, a reasonable document-order approximation without walking the
// full /Pages tree.
func orderedPageIDs(objects map[int][]byte) []int {
	ids := make([]int, 0)
	for id, body := range objects {
		if reIsPage.Match(body) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func extractPageText(pageObj []byte, objects map[int][]byte) string {
	var streams [][]byte
	if m := reContentsRef.FindSubmatch(pageObj); m != nil {
		id, _ := strconv.Atoi(string(m[1]))
		if body, ok := objects[id]; ok {
			streams = append(streams, body)
		}
	} else if m := reContentsArr.FindSubmatch(pageObj); m != nil {
		for _, ref := range reIntRef.FindAllSubmatch(m[1], -1) {
			id, _ := strconv.Atoi(string(ref[1]))
			if body, ok := objects[id]; ok {
				streams = append(streams, body)
			}
		}
	}

	var out bytes.Buffer
	for _, s := range streams {
		out.WriteString(decodeContentStream(s))
		out.WriteString("\n")
	}
	return out.String()
}

func decodeContentStream(objBody []byte) string {
	m := reStream.FindSubmatch(objBody)
	if m == nil {
		return ""
	}
	raw := m[1]
	if reFlate.Match(objBody) {
		if inflated, err := inflate(raw); err == nil {
			raw = inflated
		}
	}
	return extractTextOperators(raw)
}

func extractAllText(data []byte) string {
	var out bytes.Buffer
	for _, m := range reStream.FindAllSubmatch(data, -1) {
		raw := m[1]
		if inflated, err := inflate(raw); err == nil {
			raw = inflated
		}
		out.WriteString(extractTextOperators(raw))
		out.WriteString("\n")
	}
	return out.String()
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// extractTextOperators pulls literal-string operands of the Tj and TJ
// text-showing operators out of a decoded content stream.
func extractTextOperators(content []byte) string {
	var out bytes.Buffer
	for _, m := range reTj.FindAllSubmatch(content, -1) {
		out.WriteString(unescapePDFString(m[1]))
		out.WriteString(" ")
	}
	for _, m := range reTJArray.FindAllSubmatch(content, -1) {
		for _, s := range reTJString.FindAllSubmatch(m[1], -1) {
			out.WriteString(unescapePDFString(s[1]))
		}
		out.WriteString(" ")
	}
	return out.String()
}

func unescapePDFString(s []byte) string {
	return reEscape.ReplaceAllStringFunc(string(s), func(esc string) string {
		switch esc {
		case `\(`:
			return "("
		case `\)`:
			return ")"
		case `\\`:
			return `\`
		case `\n`:
			return "\n"
		case `\r`:
			return "\r"
		case `\t`:
			return "\t"
		}
		return ""
	})
}

var _ rag.PageExtractor = (*Extractor)(nil)
