package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nutri-planner/models"
	"nutri-planner/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	db          *storage.DB
	clock       *fakeClock
	diagnostics *DiagnosticService
	meals       *MealLogService
	evaluations *EvaluationService
	exports     *ExportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, storage.NewMemoryStore())
}

func newFixtureOn(t *testing.T, store storage.Store) *fixture {
	t.Helper()
	db := storage.New(store, zap.NewNop())
	clock := &fakeClock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	d := NewDiagnosticService(db, zap.NewNop(), clock.now)
	m := NewMealLogService(db, d, time.UTC, zap.NewNop(), clock.now)
	e := NewEvaluationService(db, d, zap.NewNop(), clock.now)
	return &fixture{
		db:          db,
		clock:       clock,
		diagnostics: d,
		meals:       m,
		evaluations: e,
		exports:     NewExportService(d, m, e, clock.now),
	}
}

// hookStore calls onGet before every read.
type hookStore struct {
	storage.Store
	onGet func(name string)
}

func (h *hookStore) Get(ctx context.Context, name string) ([]byte, error) {
	if h.onGet != nil {
		h.onGet(name)
	}
	return h.Store.Get(ctx, name)
}

var nutritionist = models.User{ID: "n-1", Name: "Dra. Carla", Role: models.RoleNutritionist}

func completeDraft(f *fixture, patientID string) *models.DiagnosticRecord {
	rec := f.diagnostics.CreateDraft(patientID, "Paciente "+patientID)
	rec.HealthInfo = models.HealthInfo{
		DateOfBirth:   "1990-05-20",
		Sex:           "feminino",
		Occupation:    "professora",
		ActivityLevel: "moderado",
		SleepQuality:  "boa",
		MealsPerDay:   "4",
	}
	rec.MedicalHistory.DiagnosedConditions = "nenhuma"
	rec.MainGoal = "emagrecimento"
	return rec
}

func fullPlan() models.MealPlan {
	plan := models.NewMealPlan()
	for _, slot := range models.Slots {
		for i, name := range []string{"Opção A", "Opção B", "Opção C"} {
			_ = plan.AddDish(slot, models.Dish{
				Name:     name,
				Kcal:     float64(300 + 100*i),
				CarbG:    30,
				ProteinG: 20,
				FatG:     10,
				Notes:    "sem açúcar",
			})
		}
	}
	return plan
}

// evaluatedPatient runs a patient through draft, submit and evaluate.
func evaluatedPatient(t *testing.T, f *fixture, patientID string, ev Evaluation) *models.DiagnosticRecord {
	t.Helper()
	ctx := context.Background()
	rec := completeDraft(f, patientID)
	require.NoError(t, f.diagnostics.SaveDraft(ctx, rec))
	require.NoError(t, f.diagnostics.Submit(ctx, rec))
	out, err := f.diagnostics.Evaluate(ctx, rec.ID, nutritionist, ev)
	require.NoError(t, err)
	return out
}
