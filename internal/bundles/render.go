package bundles

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/WeDesignz/WebApp-sub000/internal/catalog"
)

// A4 in points.
const (
	pageWidth  = 595
	pageHeight = 842
)

// RenderBundle writes a PDF with one page per design, in the order given.
func RenderBundle(b Bundle, designs []catalog.Design) ([]byte, error) {
	if len(designs) == 0 {
		return nil, errors.New("render: no designs")
	}

	w := &pdfWriter{}
	w.buf.WriteString("%PDF-1.4\n")

	// Object numbers: 1 catalog, 2 page tree, 3 font, then a page and a content
	// stream per design.
	pageObj := func(i int) int { return 4 + 2*i }
	contentObj := func(i int) int { return 5 + 2*i }

	w.object(1, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(designs))
	for i := range designs {
		kids[i] = fmt.Sprintf("%d 0 R", pageObj(i))
	}
	w.object(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(designs)))
	w.object(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	for i, d := range designs {
		w.object(pageObj(i), fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			pageWidth, pageHeight, contentObj(i)))
		w.stream(contentObj(i), pageContent(b, d, i+1, len(designs)))
	}

	return w.finish(), nil
}

func pageContent(b Bundle, d catalog.Design, page, total int) string {
	lines := []struct {
		size int
		text string
	}{
		{20, d.Title},
		{11, "Design ID: " + d.ID},
		{11, "Category: " + d.CategoryID},
		{11, "Preview: " + d.MediaURL},
		{9, fmt.Sprintf("Mock-PDF %s - page %d of %d", b.ID, page, total)},
	}

	var sb strings.Builder
	y := pageHeight - 80
	for _, l := range lines {
		if strings.TrimSpace(l.text) == "" {
			continue
		}
		fmt.Fprintf(&sb, "BT /F1 %d Tf 56 %d Td (%s) Tj ET\n", l.size, y, escapePDFText(l.text))
		y -= l.size + 14
	}
	return sb.String()
}

// escapePDFText keeps printable ASCII and escapes string delimiters.
func escapePDFText(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == '(' || r == ')':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r >= 0x20 && r < 0x7f:
			sb.WriteRune(r)
		default:
			sb.WriteByte('?')
		}
	}
	return sb.String()
}

type pdfWriter struct {
	buf     bytes.Buffer
	offsets map[int]int
	maxObj  int
}

func (w *pdfWriter) begin(num int) {
	if w.offsets == nil {
		w.offsets = make(map[int]int)
	}
	w.offsets[num] = w.buf.Len()
	if num > w.maxObj {
		w.maxObj = num
	}
	fmt.Fprintf(&w.buf, "%d 0 obj\n", num)
}

func (w *pdfWriter) object(num int, body string) {
	w.begin(num)
	w.buf.WriteString(body)
	w.buf.WriteString("\nendobj\n")
}

func (w *pdfWriter) stream(num int, content string) {
	w.begin(num)
	fmt.Fprintf(&w.buf, "<< /Length %d >>\nstream\n", len(content))
	w.buf.WriteString(content)
	w.buf.WriteString("\nendstream\nendobj\n")
}

func (w *pdfWriter) finish() []byte {
	xref := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n", w.maxObj+1)
	w.buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= w.maxObj; i++ {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", w.offsets[i])
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", w.maxObj+1, xref)
	return w.buf.Bytes()
}

// CountPages parses data as a PDF and returns its page count.
func CountPages(data []byte) (n int, err error) {
	// The reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	return reader.NumPage(), nil
}
