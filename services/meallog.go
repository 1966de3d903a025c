package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutri-planner/models"
	"nutri-planner/storage"
)

// PlanSource resolves the meal plan a patient picks dishes from.
type PlanSource interface {
	CurrentPlan(ctx context.Context, patientID string) (models.MealPlan, error)
}

type ManualMeal struct {
	Description string        `json:"description"`
	Kcal        float64       `json:"kcal"`
	Macros      models.Macros `json:"macros"`
}

type PlanChoice struct {
	Slot      models.Slot `json:"slot"`
	DishIndex int         `json:"dishIndex"`
}

// Selection describes one logged meal. Exactly one of Manual or Plan is set.
// A zero At means now.
type Selection struct {
	Manual      *ManualMeal `json:"manual,omitempty"`
	Plan        *PlanChoice `json:"plan,omitempty"`
	PatientNote string      `json:"patientNote,omitempty"`
	At          time.Time   `json:"at,omitempty"`
}

type MealLogService struct {
	db    *storage.DB
	meals *storage.Collection[models.MealLogEntry]
	evals *storage.Collection[models.MealEvaluation]
	plans PlanSource
	loc   *time.Location
	log   *zap.Logger
	now   func() time.Time
}

func NewMealLogService(db *storage.DB, plans PlanSource, loc *time.Location, log *zap.Logger, now func() time.Time) *MealLogService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &MealLogService{
		db:    db,
		meals: storage.NewCollection[models.MealLogEntry](db, storage.Meals),
		evals: storage.NewCollection[models.MealEvaluation](db, storage.MealEvaluations),
		plans: plans,
		loc:   loc,
		log:   log,
		now:   now,
	}
}

func (s *MealLogService) Location() *time.Location { return s.loc }

// DayKey is the calendar date of t in the service's location.
func (s *MealLogService) DayKey(t time.Time) string {
	return t.In(s.loc).Format(time.DateOnly)
}

// Today is the current calendar date in the service's location.
func (s *MealLogService) Today() string {
	return s.DayKey(s.now())
}

// WeekStart is the first day of the seven-day window that ends on day.
func (s *MealLogService) WeekStart(day string) string {
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, -6).Format(time.DateOnly)
}

func (s *MealLogService) LogMeal(ctx context.Context, patientID, slotLabel string, sel Selection) (*models.MealLogEntry, error) {
	if patientID == "" {
		return nil, &models.ValidationError{Field: "patientId", Msg: "is required"}
	}
	at := sel.At
	if at.IsZero() {
		at = s.now()
	}
	entry := models.MealLogEntry{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		SlotName:    strings.TrimSpace(slotLabel),
		Timestamp:   at.UTC(),
		PatientNote: strings.TrimSpace(sel.PatientNote),
	}

	switch {
	case sel.Manual != nil && sel.Plan != nil:
		return nil, &models.ValidationError{Msg: "choose a plan dish or enter the meal manually, not both"}
	case sel.Manual != nil:
		if err := validateManual(sel.Manual); err != nil {
			return nil, err
		}
		entry.Description = strings.TrimSpace(sel.Manual.Description)
		entry.Kcal = sel.Manual.Kcal
		entry.Macros = sel.Manual.Macros
	case sel.Plan != nil:
		if !sel.Plan.Slot.Valid() {
			return nil, &models.ValidationError{Field: "slot", Msg: fmt.Sprintf("unknown meal slot %q", sel.Plan.Slot)}
		}
		plan, err := s.plans.CurrentPlan(ctx, patientID)
		if err != nil {
			return nil, err
		}
		dish, ok := plan.Dish(sel.Plan.Slot, sel.Plan.DishIndex)
		if !ok {
			return nil, &models.ValidationError{Field: "dishIndex", Msg: "no such dish in the plan"}
		}
		label := sel.Plan.Slot.Label()
		if entry.SlotName != "" && !strings.EqualFold(entry.SlotName, label) {
			return nil, &models.ValidationError{
				Field: "slotName",
				Msg:   fmt.Sprintf("%q does not match the plan slot %q", entry.SlotName, label),
			}
		}
		entry.SlotName = label
		entry.Description = dish.Name
		entry.Kcal = dish.Kcal
		entry.Macros = models.Macros{CarbG: dish.CarbG, ProteinG: dish.ProteinG, FatG: dish.FatG}
		entry.NutritionistNoteAtSelection = dish.Notes
	default:
		return nil, &models.ValidationError{Msg: "a plan dish or a manual meal is required"}
	}

	if entry.SlotName == "" {
		return nil, &models.ValidationError{Field: "slotName", Msg: "is required"}
	}
	entry.ImageRef = models.ImageFor(entry.SlotName)

	err := s.meals.Modify(ctx, func(meals []models.MealLogEntry) ([]models.MealLogEntry, error) {
		return append(meals, entry), nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("meal logged",
		zap.String("entry_id", entry.ID),
		zap.String("patient_id", patientID),
		zap.Float64("kcal", entry.Kcal))
	return &entry, nil
}

func validateManual(m *ManualMeal) error {
	if strings.TrimSpace(m.Description) == "" {
		return &models.ValidationError{Field: "description", Msg: "is required"}
	}
	if m.Kcal <= 0 {
		return &models.ValidationError{Field: "kcal", Msg: "must be positive"}
	}
	if m.Macros.CarbG < 0 || m.Macros.ProteinG < 0 || m.Macros.FatG < 0 {
		return &models.ValidationError{Field: "macros", Msg: "cannot be negative"}
	}
	return nil
}

// DeleteMeal removes one of the patient's entries along with its evaluation.
func (s *MealLogService) DeleteMeal(ctx context.Context, patientID, entryID string) error {
	err := s.db.Update(ctx, func(ctx context.Context) error {
		meals, err := s.meals.Load(ctx)
		if err != nil {
			return err
		}
		i := -1
		for j := range meals {
			if meals[j].ID == entryID && meals[j].PatientID == patientID {
				i = j
				break
			}
		}
		if i < 0 {
			return fmt.Errorf("meal %s: %w", entryID, models.ErrNotFound)
		}
		if err := s.meals.Save(ctx, append(meals[:i:i], meals[i+1:]...)); err != nil {
			return err
		}

		evals, err := s.evals.Load(ctx)
		if err != nil {
			return err
		}
		kept := evals[:0]
		for _, e := range evals {
			if e.MealLogEntryID != entryID {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(evals) {
			return nil
		}
		return s.evals.Save(ctx, kept)
	})
	if err != nil {
		return err
	}
	s.log.Info("meal deleted", zap.String("entry_id", entryID), zap.String("patient_id", patientID))
	return nil
}

// ListMeals returns every entry of the patient ordered by timestamp.
func (s *MealLogService) ListMeals(ctx context.Context, patientID string) ([]models.MealLogEntry, error) {
	meals, err := s.meals.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.MealLogEntry{}
	for _, m := range meals {
		if m.PatientID == patientID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// ListMealsForDay returns the patient's entries whose timestamp falls on
// day (YYYY-MM-DD) in the service's location.
func (s *MealLogService) ListMealsForDay(ctx context.Context, patientID, day string) ([]models.MealLogEntry, error) {
	if err := validDay(day); err != nil {
		return nil, err
	}
	all, err := s.ListMeals(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := []models.MealLogEntry{}
	for _, m := range all {
		if s.DayKey(m.Timestamp) == day {
			out = append(out, m)
		}
	}
	return out, nil
}

type DayGroup struct {
	Date    string                `json:"date"`
	Entries []models.MealLogEntry `json:"entries"`
	Totals  Totals                `json:"totals"`
}

// GroupByDay buckets entries by calendar day, most recent day first.
func (s *MealLogService) GroupByDay(entries []models.MealLogEntry) []DayGroup {
	idx := map[string]int{}
	var groups []DayGroup
	for _, e := range entries {
		key := s.DayKey(e.Timestamp)
		i, ok := idx[key]
		if !ok {
			i = len(groups)
			idx[key] = i
			groups = append(groups, DayGroup{Date: key})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	for i := range groups {
		groups[i].Totals = DailyTotals(groups[i].Entries)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date > groups[j].Date })
	return groups
}

type DaySummary struct {
	Date    string `json:"date"`
	Entries int    `json:"entries"`
	Totals  Totals `json:"totals"`
}

// WeeklySummary covers the seven days starting at start (YYYY-MM-DD).
func (s *MealLogService) WeeklySummary(ctx context.Context, patientID, start string) ([]DaySummary, error) {
	if err := validDay(start); err != nil {
		return nil, err
	}
	first, _ := time.ParseInLocation(time.DateOnly, start, s.loc)

	all, err := s.ListMeals(ctx, patientID)
	if err != nil {
		return nil, err
	}
	byDay := map[string][]models.MealLogEntry{}
	for _, m := range all {
		key := s.DayKey(m.Timestamp)
		byDay[key] = append(byDay[key], m)
	}

	week := make([]DaySummary, 7)
	for i := range week {
		key := first.AddDate(0, 0, i).Format(time.DateOnly)
		week[i] = DaySummary{Date: key, Entries: len(byDay[key]), Totals: DailyTotals(byDay[key])}
	}
	return week, nil
}

func validDay(day string) error {
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		return &models.ValidationError{Field: "date", Msg: "must be YYYY-MM-DD"}
	}
	return nil
}
