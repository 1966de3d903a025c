package services

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"strconv"
	"time"

	"nutri-planner/models"
)

type PatientRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DaySnapshot is everything the patient dashboard shows for one day.
type DaySnapshot struct {
	Patient     PatientRef                       `json:"patient"`
	Date        string                           `json:"date"`
	Entries     []models.MealLogEntry            `json:"entries"`
	Totals      Totals                           `json:"totals"`
	Evaluations map[string]models.MealEvaluation `json:"evaluations"`
	Progress    *Progress                        `json:"progress,omitempty"`
	GeneratedAt time.Time                        `json:"generatedAt"`
}

// EvaluationOf returns nil when the entry has no evaluation.
func (s *DaySnapshot) EvaluationOf(entryID string) *models.MealEvaluation {
	ev, ok := s.Evaluations[entryID]
	if !ok {
		return nil
	}
	return &ev
}

type ExportService struct {
	diagnostics *DiagnosticService
	meals       *MealLogService
	evaluations *EvaluationService
	now         func() time.Time
}

func NewExportService(d *DiagnosticService, m *MealLogService, e *EvaluationService, now func() time.Time) *ExportService {
	if now == nil {
		now = time.Now
	}
	return &ExportService{diagnostics: d, meals: m, evaluations: e, now: now}
}

func (s *ExportService) DaySnapshot(ctx context.Context, patient models.User, day string) (*DaySnapshot, error) {
	entries, err := s.meals.ListMealsForDay(ctx, patient.ID, day)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	evals, err := s.evaluations.ForEntries(ctx, ids)
	if err != nil {
		return nil, err
	}

	snap := &DaySnapshot{
		Patient:     PatientRef{ID: patient.ID, Name: patient.Name},
		Date:        day,
		Entries:     entries,
		Totals:      DailyTotals(entries),
		Evaluations: evals,
		GeneratedAt: s.now().UTC(),
	}

	cur, err := s.diagnostics.Current(ctx, patient.ID)
	switch {
	case err == nil:
		snap.Progress = ProgressFor(snap.Totals, cur)
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}
	return snap, nil
}

// DiagnosticJSON renders a record for download.
func DiagnosticJSON(rec *models.DiagnosticRecord) (string, []byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", nil, err
	}
	return "diagnostico_" + rec.ID + ".json", data, nil
}

func SnapshotJSON(snap *DaySnapshot) (string, []byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", nil, err
	}
	return "dashboard_" + snap.Date + ".json", data, nil
}

var printTemplate = template.Must(template.New("day").Funcs(template.FuncMap{
	"kcal":  func(v float64) string { return formatFloat(v, 0) },
	"grams": func(v float64) string { return formatFloat(v, 1) + "g" },
	"clock": func(t time.Time, loc *time.Location) string { return t.In(loc).Format("15:04") },
}).Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>Relatório diário - {{.Snap.Date}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
.totals { margin-top: 1em; font-weight: bold; }
</style>
</head>
<body>
<h1>{{.Snap.Patient.Name}}</h1>
<h2>{{.Snap.Date}}</h2>
{{if .Snap.Entries}}
<table>
<tr><th>Hora</th><th>Refeição</th><th>Descrição</th><th>kcal</th><th>Carb</th><th>Prot</th><th>Gord</th><th>Avaliação</th></tr>
{{range .Snap.Entries}}
<tr>
<td>{{clock .Timestamp $.Loc}}</td>
<td>{{.SlotName}}</td>
<td>{{.Description}}{{if .PatientNote}}<br><small>{{.PatientNote}}</small>{{end}}</td>
<td>{{kcal .Kcal}}</td>
<td>{{grams .Macros.CarbG}}</td>
<td>{{grams .Macros.ProteinG}}</td>
<td>{{grams .Macros.FatG}}</td>
<td>{{with $.Snap.EvaluationOf .ID}}{{.Rating}}{{if .Note}}: {{.Note}}{{end}}{{end}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>Nenhuma refeição registrada.</p>
{{end}}
<p class="totals">Total: {{kcal .Snap.Totals.Kcal}} kcal · Carb {{grams .Snap.Totals.CarbG}} · Prot {{grams .Snap.Totals.ProteinG}} · Gord {{grams .Snap.Totals.FatG}}</p>
{{with .Snap.Progress}}
<p>Meta: {{kcal .TargetKcal}} kcal · Restante: {{kcal .RemainingKcal}} kcal</p>
{{end}}
</body>
</html>
`))

// PrintDay writes a printable HTML page of the snapshot. Times are shown
// in loc.
func PrintDay(w io.Writer, snap *DaySnapshot, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	return printTemplate.Execute(w, struct {
		Snap *DaySnapshot
		Loc  *time.Location
	}{snap, loc})
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
