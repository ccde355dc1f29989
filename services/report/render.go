package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	pageMargin   = 72.0
	bottomMargin = 18.0
	labelWidth   = 216.0
	valueWidth   = 144.0
	rowHeight    = 20.0
	lineHeight   = 14.0
)

// Render lays the report out as a letter-sized PDF.
func Render(d *Data) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, bottomMargin)
	pdf.SetTitle(d.Title(), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 24, tr(d.Title()), "", 1, "C", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, lineHeight, tr(d.PeriodLine()), "", 1, "L", false, 0, "")
	pdf.Ln(20)

	heading(pdf, "Summary Statistics")
	table(pdf, tr, []string{"Metric", "Value"}, d.SummaryRows())
	pdf.Ln(20)

	if len(d.Sentiments) > 0 {
		heading(pdf, "Sentiment Analysis")
		rows := make([][]string, 0, len(d.Sentiments))
		for _, s := range d.Sentiments {
			rows = append(rows, []string{s.Sentiment, fmt.Sprint(s.Count)})
		}
		table(pdf, tr, []string{"Sentiment", "Count"}, rows)
		pdf.Ln(20)
	}

	if len(d.Recent) > 0 {
		heading(pdf, "Recent Reviews")
		for _, e := range d.Recent {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.MultiCell(0, lineHeight, tr(fmt.Sprintf("%d/5 stars - %s", e.Rating, e.CustomerName)), "", "L", false)
			if e.Comment != "" {
				pdf.SetFont("Helvetica", "I", 11)
				pdf.MultiCell(0, lineHeight, tr(`"`+e.Comment+`"`), "", "L", false)
			}
			if e.Sentiment != "" {
				pdf.SetFont("Helvetica", "", 11)
				pdf.MultiCell(0, lineHeight, tr("Sentiment: "+e.Sentiment), "", "L", false)
			}
			pdf.Ln(10)
		}
	}

	if len(d.Attention) > 0 {
		heading(pdf, "Reviews Requiring Attention")
		for _, e := range d.Attention {
			pdf.SetFont("Helvetica", "B", 11)
			line := fmt.Sprintf("%d/5 stars from %s - %s", e.Rating, e.CustomerName, e.CreatedAt.Format(dateLayout))
			pdf.MultiCell(0, lineHeight, tr(line), "", "L", false)
			if e.Comment != "" {
				pdf.SetFont("Helvetica", "", 11)
				pdf.MultiCell(0, lineHeight, tr(`"`+e.Comment+`"`), "", "L", false)
			}
			pdf.Ln(10)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 18, text, "", 1, "L", false, 0, "")
	pdf.Ln(12)
}

func table(pdf *fpdf.Fpdf, tr func(string) string, header []string, rows [][]string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(245, 245, 245)
	pdf.CellFormat(labelWidth, rowHeight, header[0], "1", 0, "C", true, 0, "")
	pdf.CellFormat(valueWidth, rowHeight, header[1], "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetFillColor(245, 245, 220)
	pdf.SetTextColor(0, 0, 0)
	for _, row := range rows {
		pdf.CellFormat(labelWidth, rowHeight, tr(row[0]), "1", 0, "C", true, 0, "")
		pdf.CellFormat(valueWidth, rowHeight, tr(row[1]), "1", 1, "C", true, 0, "")
	}
}
