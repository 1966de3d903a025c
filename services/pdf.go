package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// DayPDF renders the snapshot as a one-page A4 report. Times are shown in loc.
func DayPDF(snap *DaySnapshot, loc *time.Location) (string, *bytes.Buffer, error) {
	if loc == nil {
		loc = time.UTC
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr("Relatório diário"))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 8, tr(fmt.Sprintf("%s - %s", snap.Patient.Name, snap.Date)))
	pdf.Ln(12)

	widths := []float64{16, 34, 62, 18, 18, 18, 18}
	header := []string{"Hora", "Refeição", "Descrição", "kcal", "Carb", "Prot", "Gord"}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	if len(snap.Entries) == 0 {
		pdf.CellFormat(0, 7, tr("Nenhuma refeição registrada."), "1", 1, "L", false, 0, "")
	}
	for _, e := range snap.Entries {
		row := []string{
			e.Timestamp.In(loc).Format("15:04"),
			e.SlotName,
			e.Description,
			formatFloat(e.Kcal, 0),
			formatFloat(e.Macros.CarbG, 1),
			formatFloat(e.Macros.ProteinG, 1),
			formatFloat(e.Macros.FatG, 1),
		}
		for i, v := range row {
			pdf.CellFormat(widths[i], 7, tr(v), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
		if ev := snap.EvaluationOf(e.ID); ev != nil {
			note := fmt.Sprintf("  Avaliação: %s", ev.Rating)
			if ev.Note != "" {
				note += " - " + ev.Note
			}
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(0, 6, tr(note), "", 1, "L", false, 0, "")
			pdf.SetFont("Arial", "", 10)
		}
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 12)
	t := snap.Totals
	pdf.Cell(0, 8, tr(fmt.Sprintf("Total: %s kcal  Carb %sg  Prot %sg  Gord %sg",
		formatFloat(t.Kcal, 0), formatFloat(t.CarbG, 1), formatFloat(t.ProteinG, 1), formatFloat(t.FatG, 1))))
	pdf.Ln(8)
	if p := snap.Progress; p != nil {
		pdf.SetFont("Arial", "", 12)
		pdf.Cell(0, 8, tr(fmt.Sprintf("Meta: %s kcal  Restante: %s kcal",
			formatFloat(p.TargetKcal, 0), formatFloat(p.RemainingKcal, 0))))
		pdf.Ln(8)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return "", nil, err
	}
	return "relatorio_" + snap.Date + ".pdf", &buf, nil
}
