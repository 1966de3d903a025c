package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutri-planner/models"
	"nutri-planner/storage"
)

// macroSumTolerance is how far the three macro percentages may drift from 100.
const macroSumTolerance = 0.1

type DiagnosticService struct {
	db        *storage.DB
	drafts    *storage.Collection[models.DiagnosticRecord]
	submitted *storage.Collection[models.DiagnosticRecord]
	evaluated *storage.Collection[models.DiagnosticRecord]
	log       *zap.Logger
	now       func() time.Time
}

func NewDiagnosticService(db *storage.DB, log *zap.Logger, now func() time.Time) *DiagnosticService {
	if now == nil {
		now = time.Now
	}
	return &DiagnosticService{
		db:        db,
		drafts:    storage.NewCollection[models.DiagnosticRecord](db, storage.DraftDiagnostics),
		submitted: storage.NewCollection[models.DiagnosticRecord](db, storage.SubmittedDiagnostics),
		evaluated: storage.NewCollection[models.DiagnosticRecord](db, storage.EvaluatedDiagnostics),
		log:       log,
		now:       now,
	}
}

// CreateDraft returns an empty questionnaire. Nothing is stored until SaveDraft.
func (s *DiagnosticService) CreateDraft(patientID, patientName string) *models.DiagnosticRecord {
	now := s.now().UTC()
	return &models.DiagnosticRecord{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		PatientName: patientName,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      models.StatusDraft,
	}
}

// SaveDraft stores rec as the patient's only draft.
func (s *DiagnosticService) SaveDraft(ctx context.Context, rec *models.DiagnosticRecord) error {
	if rec.PatientID == "" {
		return &models.ValidationError{Field: "patientId", Msg: "is required"}
	}
	if rec.Status == "" {
		rec.Status = models.StatusDraft
	}
	if rec.Status != models.StatusDraft {
		return fmt.Errorf("save draft %s: %w", rec.ID, models.ErrInvalidState)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := s.now().UTC()
	rec.UpdatedAt = now
	rec.HealthInfo.Age = models.AgeAt(rec.HealthInfo.DateOfBirth, now)

	return s.db.Update(ctx, func(ctx context.Context) error {
		drafts, err := s.checkDraftID(ctx, "save draft", rec.ID, rec.PatientID)
		if err != nil {
			return err
		}
		if i := indexOfRecord(drafts, rec.ID); i >= 0 && rec.CreatedAt.IsZero() {
			rec.CreatedAt = drafts[i].CreatedAt
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		kept := drafts[:0]
		for _, d := range drafts {
			if d.ID != rec.ID && d.PatientID != rec.PatientID {
				kept = append(kept, d)
			}
		}
		return s.drafts.Save(ctx, append(kept, *rec))
	})
}

// checkDraftID makes sure id may still be written as patientID's draft. An id
// owned by another patient is forbidden; one that already left the draft
// collection is in the wrong state. It returns the loaded drafts and must run
// inside db.Update.
func (s *DiagnosticService) checkDraftID(ctx context.Context, op, id, patientID string) ([]models.DiagnosticRecord, error) {
	drafts, err := s.drafts.Load(ctx)
	if err != nil {
		return nil, err
	}
	sent, err := s.submitted.Load(ctx)
	if err != nil {
		return nil, err
	}
	done, err := s.evaluated.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, recs := range [][]models.DiagnosticRecord{drafts, sent, done} {
		if i := indexOfRecord(recs, id); i >= 0 && recs[i].PatientID != patientID {
			s.log.Warn("diagnostic id owned by another patient", zap.String("diagnostic_id", id), zap.String("patient_id", patientID))
			return nil, fmt.Errorf("%s %s: %w", op, id, models.ErrForbidden)
		}
	}
	if indexOfRecord(sent, id) >= 0 || indexOfRecord(done, id) >= 0 {
		return nil, fmt.Errorf("%s %s: already submitted: %w", op, id, models.ErrInvalidState)
	}
	return drafts, nil
}

// MissingRequired lists the questionnaire fields that must be filled before
// submission, in form order.
func MissingRequired(rec *models.DiagnosticRecord) []string {
	required := []struct {
		name  string
		value string
	}{
		{"dateOfBirth", rec.HealthInfo.DateOfBirth},
		{"sex", rec.HealthInfo.Sex},
		{"occupation", rec.HealthInfo.Occupation},
		{"activityLevel", rec.HealthInfo.ActivityLevel},
		{"sleepQuality", rec.HealthInfo.SleepQuality},
		{"mealsPerDay", rec.HealthInfo.MealsPerDay},
		{"diagnosedConditions", rec.MedicalHistory.DiagnosedConditions},
		{"mainGoal", rec.MainGoal},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Submit sends the questionnaire to the nutritionists, moving it out of the
// draft collection.
func (s *DiagnosticService) Submit(ctx context.Context, rec *models.DiagnosticRecord) error {
	if missing := MissingRequired(rec); len(missing) > 0 {
		return &models.ValidationError{
			Field: missing[0],
			Msg:   "required fields are empty: " + strings.Join(missing, ", "),
		}
	}
	if rec.Status != "" && rec.Status != models.StatusDraft {
		return fmt.Errorf("submit %s: %w", rec.ID, models.ErrInvalidState)
	}

	submitted := *rec
	if submitted.ID == "" {
		submitted.ID = uuid.NewString()
	}
	submitted.Status = models.StatusSubmitted
	submitted.UpdatedAt = s.now().UTC()
	submitted.HealthInfo.Age = models.AgeAt(submitted.HealthInfo.DateOfBirth, submitted.UpdatedAt)

	err := s.db.Update(ctx, func(ctx context.Context) error {
		drafts, err := s.checkDraftID(ctx, "submit", submitted.ID, submitted.PatientID)
		if err != nil {
			return err
		}
		sent, err := s.submitted.Load(ctx)
		if err != nil {
			return err
		}
		if i := indexOfRecord(drafts, submitted.ID); i >= 0 && submitted.CreatedAt.IsZero() {
			submitted.CreatedAt = drafts[i].CreatedAt
		}
		if submitted.CreatedAt.IsZero() {
			submitted.CreatedAt = submitted.UpdatedAt
		}
		if err := s.drafts.Save(ctx, removeRecord(drafts, submitted.ID)); err != nil {
			return err
		}
		return s.submitted.Save(ctx, append(sent, submitted))
	})
	if err != nil {
		return err
	}

	*rec = submitted
	s.log.Info("diagnostic submitted", zap.String("diagnostic_id", rec.ID), zap.String("patient_id", rec.PatientID))
	return nil
}

// Evaluation is what a nutritionist attaches to a submitted diagnostic:
// either a calorie/macro prescription or a meal plan, never both.
type Evaluation struct {
	Prescription *models.Prescription `json:"prescription,omitempty"`
	MealPlan     models.MealPlan      `json:"mealPlan,omitempty"`
}

func (e Evaluation) Validate() error {
	switch {
	case e.Prescription != nil && e.MealPlan != nil:
		return &models.ValidationError{Msg: "send either a prescription or a meal plan, not both"}
	case e.Prescription != nil:
		return ValidatePrescription(*e.Prescription)
	case e.MealPlan != nil:
		return e.MealPlan.ValidateForSubmission()
	}
	return &models.ValidationError{Msg: "a prescription or a meal plan is required"}
}

func ValidatePrescription(p models.Prescription) error {
	if p.CalorieTarget <= 0 {
		return &models.ValidationError{Field: "calorieTarget", Msg: "must be positive"}
	}
	m := p.MacroTargets
	sum := m.CarbPct + m.ProteinPct + m.FatPct
	if math.Abs(sum-100) > macroSumTolerance {
		return &models.ValidationError{
			Field: "macroTargets",
			Msg:   fmt.Sprintf("percentages must add up to 100%%, got %.2f%%", sum),
		}
	}
	return nil
}

// Evaluate closes a submitted diagnostic with the nutritionist's evaluation.
func (s *DiagnosticService) Evaluate(ctx context.Context, id string, nutritionist models.User, ev Evaluation) (*models.DiagnosticRecord, error) {
	if nutritionist.Role != models.RoleNutritionist {
		return nil, models.ErrForbidden
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	var out models.DiagnosticRecord
	err := s.db.Update(ctx, func(ctx context.Context) error {
		sent, err := s.submitted.Load(ctx)
		if err != nil {
			return err
		}
		done, err := s.evaluated.Load(ctx)
		if err != nil {
			return err
		}
		i := indexOfRecord(sent, id)
		if i < 0 {
			if indexOfRecord(done, id) >= 0 {
				return fmt.Errorf("evaluate %s: %w", id, models.ErrInvalidState)
			}
			return fmt.Errorf("diagnostic %s: %w", id, models.ErrNotFound)
		}

		rec := sent[i]
		now := s.now().UTC()
		rec.Status = models.StatusEvaluated
		rec.NutritionistID = nutritionist.ID
		rec.NutritionistName = nutritionist.Name
		rec.EvaluatedAt = &now
		rec.UpdatedAt = now
		rec.Prescription = ev.Prescription
		rec.MealPlan = ev.MealPlan

		if err := s.submitted.Save(ctx, removeRecord(sent, id)); err != nil {
			return err
		}
		if err := s.evaluated.Save(ctx, append(done, rec)); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("diagnostic evaluated",
		zap.String("diagnostic_id", id),
		zap.String("nutritionist_id", nutritionist.ID),
		zap.Bool("meal_plan", out.MealPlan != nil))
	return &out, nil
}

// Current is the patient's most recently evaluated diagnostic. Records with
// equal evaluation times resolve to the one stored last.
func (s *DiagnosticService) Current(ctx context.Context, patientID string) (*models.DiagnosticRecord, error) {
	done, err := s.evaluated.Load(ctx)
	if err != nil {
		return nil, err
	}
	var cur *models.DiagnosticRecord
	for i := range done {
		d := &done[i]
		if d.PatientID != patientID || d.Status != models.StatusEvaluated {
			continue
		}
		if cur == nil || !evaluatedTime(d).Before(evaluatedTime(cur)) {
			cur = d
		}
	}
	if cur == nil {
		return nil, models.ErrNotFound
	}
	out := *cur
	return &out, nil
}

// CurrentPlan returns the meal plan of the current diagnostic.
func (s *DiagnosticService) CurrentPlan(ctx context.Context, patientID string) (models.MealPlan, error) {
	cur, err := s.Current(ctx, patientID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNoPlan
	}
	if err != nil {
		return nil, err
	}
	if cur.MealPlan == nil {
		return nil, models.ErrNoPlan
	}
	return cur.MealPlan, nil
}

func (s *DiagnosticService) Draft(ctx context.Context, patientID string) (*models.DiagnosticRecord, error) {
	drafts, err := s.drafts.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := len(drafts) - 1; i >= 0; i-- {
		if drafts[i].PatientID == patientID {
			d := drafts[i]
			return &d, nil
		}
	}
	return nil, models.ErrNotFound
}

// Get looks a record up by id across all three collections.
func (s *DiagnosticService) Get(ctx context.Context, id string) (*models.DiagnosticRecord, error) {
	for _, c := range []*storage.Collection[models.DiagnosticRecord]{s.evaluated, s.submitted, s.drafts} {
		recs, err := c.Load(ctx)
		if err != nil {
			return nil, err
		}
		if i := indexOfRecord(recs, id); i >= 0 {
			r := recs[i]
			return &r, nil
		}
	}
	return nil, fmt.Errorf("diagnostic %s: %w", id, models.ErrNotFound)
}

// ListForReview returns what nutritionists see: submitted and evaluated
// diagnostics, optionally limited to one status. Newest first.
func (s *DiagnosticService) ListForReview(ctx context.Context, status models.DiagnosticStatus) ([]models.DiagnosticRecord, error) {
	var sources []*storage.Collection[models.DiagnosticRecord]
	switch status {
	case "":
		sources = append(sources, s.submitted, s.evaluated)
	case models.StatusSubmitted:
		sources = append(sources, s.submitted)
	case models.StatusEvaluated:
		sources = append(sources, s.evaluated)
	default:
		return nil, &models.ValidationError{Field: "status", Msg: "must be submitted or evaluated"}
	}

	out := []models.DiagnosticRecord{}
	for _, c := range sources {
		recs, err := c.Load(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// HasRelationship reports whether nutritionistID evaluated any diagnostic of patientID.
func (s *DiagnosticService) HasRelationship(ctx context.Context, nutritionistID, patientID string) (bool, error) {
	done, err := s.evaluated.Load(ctx)
	if err != nil {
		return false, err
	}
	for _, d := range done {
		if d.PatientID == patientID && d.NutritionistID == nutritionistID {
			return true, nil
		}
	}
	return false, nil
}

type PatientSummary struct {
	PatientID   string                  `json:"patientId"`
	PatientName string                  `json:"patientName"`
	MainGoal    string                  `json:"mainGoal"`
	Diagnostic  models.DiagnosticRecord `json:"diagnostic"`
}

// Patients lists each patient the nutritionist evaluated once, with the
// latest diagnostic they evaluated for that patient.
func (s *DiagnosticService) Patients(ctx context.Context, nutritionistID string) ([]PatientSummary, error) {
	done, err := s.evaluated.Load(ctx)
	if err != nil {
		return nil, err
	}
	latest := map[string]models.DiagnosticRecord{}
	for _, d := range done {
		if d.NutritionistID != nutritionistID {
			continue
		}
		prev, ok := latest[d.PatientID]
		if !ok || !evaluatedTime(&d).Before(evaluatedTime(&prev)) {
			latest[d.PatientID] = d
		}
	}

	out := make([]PatientSummary, 0, len(latest))
	for id, d := range latest {
		name := d.PatientName
		if name == "" {
			name = "Paciente"
		}
		out = append(out, PatientSummary{PatientID: id, PatientName: name, MainGoal: d.MainGoal, Diagnostic: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PatientName == out[j].PatientName {
			return out[i].PatientID < out[j].PatientID
		}
		return out[i].PatientName < out[j].PatientName
	})
	return out, nil
}

func evaluatedTime(d *models.DiagnosticRecord) time.Time {
	if d.EvaluatedAt != nil {
		return *d.EvaluatedAt
	}
	return d.UpdatedAt
}

func indexOfRecord(recs []models.DiagnosticRecord, id string) int {
	for i := range recs {
		if recs[i].ID == id {
			return i
		}
	}
	return -1
}

func removeRecord(recs []models.DiagnosticRecord, id string) []models.DiagnosticRecord {
	out := make([]models.DiagnosticRecord, 0, len(recs))
	for _, r := range recs {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
