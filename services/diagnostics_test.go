package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutri-planner/models"
	"nutri-planner/storage"
)

func TestSaveDraftKeepsOneDraftPerPatient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := completeDraft(f, "p-1")
	require.NoError(t, f.diagnostics.SaveDraft(ctx, first))
	assert.Equal(t, 33, first.HealthInfo.Age)

	second := f.diagnostics.CreateDraft("p-1", "Paciente p-1")
	second.MainGoal = "ganho de massa"
	f.clock.advance(time.Hour)
	require.NoError(t, f.diagnostics.SaveDraft(ctx, second))

	drafts, err := storage.NewCollection[models.DiagnosticRecord](f.db, storage.DraftDiagnostics).Load(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, second.ID, drafts[0].ID)

	got, err := f.diagnostics.Draft(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "ganho de massa", got.MainGoal)
	assert.Equal(t, f.clock.t, got.UpdatedAt)

	_, err = f.diagnostics.Draft(ctx, "p-2")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSubmitRequiresEveryField(t *testing.T) {
	blanks := map[string]func(*models.DiagnosticRecord){
		"dateOfBirth":         func(r *models.DiagnosticRecord) { r.HealthInfo.DateOfBirth = "" },
		"sex":                 func(r *models.DiagnosticRecord) { r.HealthInfo.Sex = "" },
		"occupation":          func(r *models.DiagnosticRecord) { r.HealthInfo.Occupation = "" },
		"activityLevel":       func(r *models.DiagnosticRecord) { r.HealthInfo.ActivityLevel = "" },
		"sleepQuality":        func(r *models.DiagnosticRecord) { r.HealthInfo.SleepQuality = "" },
		"mealsPerDay":         func(r *models.DiagnosticRecord) { r.HealthInfo.MealsPerDay = "  " },
		"diagnosedConditions": func(r *models.DiagnosticRecord) { r.MedicalHistory.DiagnosedConditions = "" },
		"mainGoal":            func(r *models.DiagnosticRecord) { r.MainGoal = "" },
	}
	for field, blank := range blanks {
		t.Run(field, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			rec := completeDraft(f, "p-1")
			require.NoError(t, f.diagnostics.SaveDraft(ctx, rec))
			blank(rec)

			err := f.diagnostics.Submit(ctx, rec)
			require.Error(t, err)
			assert.True(t, models.IsValidation(err))
			assert.Equal(t, []string{field}, MissingRequired(rec))
			assert.Equal(t, models.StatusDraft, rec.Status)

			sent, err := f.diagnostics.ListForReview(ctx, models.StatusSubmitted)
			require.NoError(t, err)
			assert.Empty(t, sent)
		})
	}
}

func TestSubmitMovesDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := completeDraft(f, "p-1")
	require.NoError(t, f.diagnostics.SaveDraft(ctx, rec))
	require.NoError(t, f.diagnostics.Submit(ctx, rec))
	assert.Equal(t, models.StatusSubmitted, rec.Status)

	_, err := f.diagnostics.Draft(ctx, "p-1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	sent, err := f.diagnostics.ListForReview(ctx, models.StatusSubmitted)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, rec.ID, sent[0].ID)

	err = f.diagnostics.SaveDraft(ctx, rec)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestPrescriptionMacroSum(t *testing.T) {
	cases := []struct {
		name    string
		p       models.Prescription
		wantErr bool
	}{
		{"exact", models.Prescription{CalorieTarget: 2000, MacroTargets: models.MacroTargets{CarbPct: 40, ProteinPct: 35, FatPct: 25}}, false},
		{"within tolerance", models.Prescription{CalorieTarget: 2000, MacroTargets: models.MacroTargets{CarbPct: 40, ProteinPct: 35, FatPct: 25.05}}, false},
		{"over", models.Prescription{CalorieTarget: 2000, MacroTargets: models.MacroTargets{CarbPct: 40, ProteinPct: 35, FatPct: 26}}, true},
		{"under", models.Prescription{CalorieTarget: 2000, MacroTargets: models.MacroTargets{CarbPct: 40, ProteinPct: 30, FatPct: 25}}, true},
		{"no calories", models.Prescription{MacroTargets: models.MacroTargets{CarbPct: 40, ProteinPct: 35, FatPct: 25}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePrescription(tc.p)
			if tc.wantErr {
				assert.True(t, models.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluationNeedsExactlyOneVariant(t *testing.T) {
	p := &models.Prescription{CalorieTarget: 1800, MacroTargets: models.MacroTargets{CarbPct: 50, ProteinPct: 25, FatPct: 25}}
	assert.Error(t, Evaluation{}.Validate())
	assert.Error(t, Evaluation{Prescription: p, MealPlan: fullPlan()}.Validate())
	assert.NoError(t, Evaluation{Prescription: p}.Validate())
	assert.NoError(t, Evaluation{MealPlan: fullPlan()}.Validate())
}

func TestMealPlanNeedsThreeDishesPerSlot(t *testing.T) {
	plan := fullPlan()
	plan.RemoveDish(models.SlotBreakfast, 0)
	assert.Len(t, plan[models.SlotBreakfast], 2)
	assert.Error(t, Evaluation{MealPlan: plan}.Validate())

	require.NoError(t, plan.AddDish(models.SlotBreakfast, models.Dish{Name: "Tapioca", Kcal: 250}))
	assert.NoError(t, Evaluation{MealPlan: plan}.Validate())
}

func TestEvaluateMovesToEvaluated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := completeDraft(f, "p-1")
	require.NoError(t, f.diagnostics.SaveDraft(ctx, rec))
	require.NoError(t, f.diagnostics.Submit(ctx, rec))

	f.clock.advance(2 * time.Hour)
	out, err := f.diagnostics.Evaluate(ctx, rec.ID, nutritionist, Evaluation{MealPlan: fullPlan()})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEvaluated, out.Status)
	assert.Equal(t, nutritionist.ID, out.NutritionistID)
	assert.Equal(t, nutritionist.Name, out.NutritionistName)
	require.NotNil(t, out.EvaluatedAt)
	assert.Equal(t, f.clock.t, *out.EvaluatedAt)

	sent, err := f.diagnostics.ListForReview(ctx, models.StatusSubmitted)
	require.NoError(t, err)
	assert.Empty(t, sent)
	all, err := f.diagnostics.ListForReview(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = f.diagnostics.Evaluate(ctx, rec.ID, nutritionist, Evaluation{MealPlan: fullPlan()})
	assert.ErrorIs(t, err, models.ErrInvalidState)
	_, err = f.diagnostics.Evaluate(ctx, "missing", nutritionist, Evaluation{MealPlan: fullPlan()})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEvaluateRejectsPatients(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := completeDraft(f, "p-1")
	require.NoError(t, f.diagnostics.Submit(ctx, rec))

	patient := models.User{ID: "p-1", Role: models.RolePatient}
	_, err := f.diagnostics.Evaluate(ctx, rec.ID, patient, Evaluation{MealPlan: fullPlan()})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestCurrentIsLatestEvaluation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.diagnostics.Current(ctx, "p-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.diagnostics.CurrentPlan(ctx, "p-1")
	assert.ErrorIs(t, err, models.ErrNoPlan)

	older := evaluatedPatient(t, f, "p-1", Evaluation{Prescription: &models.Prescription{
		CalorieTarget: 2000, MacroTargets: models.MacroTargets{CarbPct: 40, ProteinPct: 35, FatPct: 25},
	}})
	f.clock.advance(24 * time.Hour)
	newer := evaluatedPatient(t, f, "p-1", Evaluation{MealPlan: fullPlan()})

	cur, err := f.diagnostics.Current(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, cur.ID)
	assert.NotEqual(t, older.ID, cur.ID)

	plan, err := f.diagnostics.CurrentPlan(ctx, "p-1")
	require.NoError(t, err)
	assert.Len(t, plan[models.SlotDinner], 3)
}

func TestCurrentTieGoesToLastStored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	evaluatedPatient(t, f, "p-1", Evaluation{MealPlan: fullPlan()})
	second := evaluatedPatient(t, f, "p-1", Evaluation{MealPlan: fullPlan()})

	cur, err := f.diagnostics.Current(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, cur.ID)
}

func TestPatientsOfNutritionist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	evaluatedPatient(t, f, "p-2", Evaluation{MealPlan: fullPlan()})
	evaluatedPatient(t, f, "p-1", Evaluation{MealPlan: fullPlan()})
	f.clock.advance(time.Hour)
	latest := evaluatedPatient(t, f, "p-1", Evaluation{MealPlan: fullPlan()})

	patients, err := f.diagnostics.Patients(ctx, nutritionist.ID)
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, "p-1", patients[0].PatientID)
	assert.Equal(t, latest.ID, patients[0].Diagnostic.ID)
	assert.Equal(t, "p-2", patients[1].PatientID)

	none, err := f.diagnostics.Patients(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, none)

	ok, err := f.diagnostics.HasRelationship(ctx, nutritionist.ID, "p-2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.diagnostics.HasRelationship(ctx, nutritionist.ID, "p-3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetSearchesAllCollections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	draft := completeDraft(f, "p-9")
	require.NoError(t, f.diagnostics.SaveDraft(ctx, draft))
	done := evaluatedPatient(t, f, "p-1", Evaluation{MealPlan: fullPlan()})

	got, err := f.diagnostics.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, got.Status)

	got, err = f.diagnostics.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEvaluated, got.Status)

	_, err = f.diagnostics.Get(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.diagnostics.ListForReview(ctx, models.StatusDraft)
	assert.True(t, models.IsValidation(err))
}

func TestSubmitOnlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := completeDraft(f, "p-1")
	require.NoError(t, f.diagnostics.SaveDraft(ctx, rec))
	require.NoError(t, f.diagnostics.Submit(ctx, rec))

	again := *rec
	again.Status = models.StatusDraft
	err := f.diagnostics.Submit(ctx, &again)
	assert.ErrorIs(t, err, models.ErrInvalidState, "already waiting for review")

	done, err := f.diagnostics.Evaluate(ctx, rec.ID, nutritionist, Evaluation{MealPlan: fullPlan()})
	require.NoError(t, err)

	again = *done
	again.Status = models.StatusDraft
	again.MealPlan, again.NutritionistID, again.EvaluatedAt = nil, "", nil
	err = f.diagnostics.Submit(ctx, &again)
	assert.ErrorIs(t, err, models.ErrInvalidState, "already evaluated")
	assert.ErrorIs(t, f.diagnostics.SaveDraft(ctx, &again), models.ErrInvalidState)

	sent, err := f.diagnostics.ListForReview(ctx, models.StatusSubmitted)
	require.NoError(t, err)
	assert.Empty(t, sent)
	cur, err := f.diagnostics.Current(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusEvaluated, cur.Status)
	assert.NotNil(t, cur.MealPlan)
}

func TestDraftIDOwnedByAnotherPatient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	theirs := completeDraft(f, "p-b")
	require.NoError(t, f.diagnostics.SaveDraft(ctx, theirs))

	mine := completeDraft(f, "p-a")
	mine.ID = theirs.ID
	assert.ErrorIs(t, f.diagnostics.SaveDraft(ctx, mine), models.ErrForbidden)
	assert.ErrorIs(t, f.diagnostics.Submit(ctx, mine), models.ErrForbidden)

	got, err := f.diagnostics.Draft(ctx, "p-b")
	require.NoError(t, err)
	assert.Equal(t, theirs.ID, got.ID)
	_, err = f.diagnostics.Draft(ctx, "p-a")
	assert.ErrorIs(t, err, models.ErrNotFound)

	done := evaluatedPatient(t, f, "p-c", Evaluation{MealPlan: fullPlan()})
	mine = completeDraft(f, "p-a")
	mine.ID = done.ID
	assert.ErrorIs(t, f.diagnostics.SaveDraft(ctx, mine), models.ErrForbidden)
	assert.ErrorIs(t, f.diagnostics.Submit(ctx, mine), models.ErrForbidden)
}
