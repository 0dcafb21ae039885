package receipts

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/coverage"
)

// Document is everything printed on a receipt.
type Document struct {
	OrganizationName string
	Title            string
	RequestCode      string
	Kind             string
	MemberCode       string
	MemberName       string
	CoveragePercent  decimal.Decimal
	Date             time.Time
	GeneratedBy      string
	Currency         string
	Lines            []DocLine
	Split            coverage.Split
}

type DocLine struct {
	Name      string
	Quantity  int
	UnitCents int64
}

func (l DocLine) TotalCents() int64 { return l.UnitCents * int64(l.Quantity) }

// Page geometry in millimetres, A4 portrait.
const (
	margin      = 15.0
	bandHeight  = 28.0
	rowHeight   = 7.0
	footerSpace = 18.0
	ellipsis    = "…"
)

// Column widths of the item table; they add up to the printable width.
var (
	colWidths = []float64{95, 20, 32.5, 32.5}
	colTitles = []string{"Item", "Qty", "Unit price", "Line total"}
	colAlign  = []string{"L", "R", "R", "R"}
)

// Render lays out doc as a PDF.
func Render(doc Document) ([]byte, error) {
	pdf, err := render(doc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type writer struct {
	pdf *fpdf.Fpdf
	doc Document
}

func render(doc Document) (*fpdf.Fpdf, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreationDate(doc.Date)
	pdf.SetTitle(doc.Title+" "+doc.RequestCode, true)
	pdf.SetAuthor(doc.OrganizationName, true)
	pdf.AliasNbPages("")

	w := &writer{pdf: pdf, doc: doc}
	pdf.SetFooterFunc(w.footer)

	pdf.AddPage()
	w.band()
	w.meta()
	w.table()
	w.totals()

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return pdf, nil
}

func (w *writer) band() {
	pageW, _ := w.pdf.GetPageSize()
	w.pdf.SetFillColor(22, 63, 110)
	w.pdf.Rect(0, 0, pageW, bandHeight, "F")

	w.pdf.SetTextColor(255, 255, 255)
	w.pdf.SetFont("Helvetica", "B", 16)
	w.pdf.SetXY(margin, 8)
	w.pdf.CellFormat(pageW-2*margin, 8, w.fit(w.doc.OrganizationName, pageW-2*margin), "", 1, "L", false, 0, "")
	w.pdf.SetFont("Helvetica", "", 10)
	w.pdf.SetX(margin)
	w.pdf.CellFormat(pageW-2*margin, 6, encode(w.doc.Title), "", 1, "L", false, 0, "")

	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.SetY(bandHeight + 6)
}

func (w *writer) meta() {
	rows := [][2]string{
		{"Request", w.doc.RequestCode},
		{"Type", w.doc.Kind},
		{"Member", w.doc.MemberCode + " - " + w.doc.MemberName},
		{"Coverage", w.doc.CoveragePercent.String() + " %"},
		{"Date", w.doc.Date.Format("2006-01-02 15:04")},
		{"Generated by", w.doc.GeneratedBy},
	}
	for _, r := range rows {
		w.pdf.SetFont("Helvetica", "B", 10)
		w.pdf.CellFormat(35, 6, encode(r[0]), "", 0, "L", false, 0, "")
		w.pdf.SetFont("Helvetica", "", 10)
		w.pdf.CellFormat(145, 6, w.fit(r[1], 145), "", 1, "L", false, 0, "")
	}
	w.pdf.Ln(4)
}

func (w *writer) tableHeader() {
	w.pdf.SetFont("Helvetica", "B", 10)
	w.pdf.SetFillColor(225, 230, 238)
	for i, title := range colTitles {
		w.pdf.CellFormat(colWidths[i], rowHeight, encode(title), "1", 0, colAlign[i], true, 0, "")
	}
	w.pdf.Ln(-1)
	w.pdf.SetFont("Helvetica", "", 10)
}

// room reports whether h more millimetres fit above the footer.
func (w *writer) room(h float64) bool {
	_, pageH := w.pdf.GetPageSize()
	return w.pdf.GetY()+h <= pageH-footerSpace
}

func (w *writer) table() {
	w.tableHeader()
	if len(w.doc.Lines) == 0 {
		w.pdf.CellFormat(sum(colWidths), rowHeight, encode("No approved items"), "1", 1, "C", false, 0, "")
		return
	}
	for _, l := range w.doc.Lines {
		if !w.room(rowHeight) {
			w.pdf.AddPage()
			w.tableHeader()
		}
		cells := []string{
			w.fit(l.Name, colWidths[0]-2),
			strconv.Itoa(l.Quantity),
			encode(coverage.FormatCents(l.UnitCents)),
			encode(coverage.FormatCents(l.TotalCents())),
		}
		for i, txt := range cells {
			w.pdf.CellFormat(colWidths[i], rowHeight, txt, "1", 0, colAlign[i], false, 0, "")
		}
		w.pdf.Ln(-1)
	}
}

func (w *writer) totals() {
	const blockH = 4*rowHeight + 4
	if !w.room(blockH) {
		w.pdf.AddPage()
	}
	w.pdf.Ln(4)
	labelW := colWidths[0] + colWidths[1] + colWidths[2]
	valueW := colWidths[3]
	rows := []struct {
		label string
		cents int64
		bold  bool
	}{
		{"Subtotal", w.doc.Split.TotalCents, false},
		{"Insurer share (" + w.doc.CoveragePercent.String() + " %)", w.doc.Split.InsurerShareCents, false},
		{"Member share", w.doc.Split.MemberShareCents, true},
	}
	for _, r := range rows {
		style := ""
		if r.bold {
			style = "B"
		}
		w.pdf.SetFont("Helvetica", style, 10)
		w.pdf.CellFormat(labelW, rowHeight, encode(r.label), "", 0, "R", false, 0, "")
		w.pdf.CellFormat(valueW, rowHeight, encode(w.money(r.cents)), "1", 1, "R", false, 0, "")
	}
}

func (w *writer) footer() {
	w.pdf.SetY(-12)
	w.pdf.SetFont("Helvetica", "I", 8)
	w.pdf.SetTextColor(110, 110, 110)
	txt := fmt.Sprintf("%s - %s - page %d/{nb}", w.doc.OrganizationName, w.doc.RequestCode, w.pdf.PageNo())
	w.pdf.CellFormat(0, 6, encode(txt), "", 0, "C", false, 0, "")
	w.pdf.SetTextColor(0, 0, 0)
}

func (w *writer) money(cents int64) string {
	s := coverage.FormatCents(cents)
	if w.doc.Currency != "" {
		s += " " + w.doc.Currency
	}
	return s
}

// fit encodes s and truncates it with an ellipsis so that it is no wider
// than width at the current font.
func (w *writer) fit(s string, width float64) string {
	enc := encode(s)
	if w.pdf.GetStringWidth(enc) <= width {
		return enc
	}
	ell := encode(ellipsis)
	for n := len(enc) - 1; n > 0; n-- {
		cand := strings.TrimRight(enc[:n], " ") + ell
		if w.pdf.GetStringWidth(cand) <= width {
			return cand
		}
	}
	return ell
}

// encode converts s to Windows-1252 for the core PDF fonts. Characters the
// code page lacks become '?'. The result has one byte per character.
func encode(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		c, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			c = '?'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func sum(xs []float64) float64 {
	var t float64
	for _, x := range xs {
		t += x
	}
	return t
}
