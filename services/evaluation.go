package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutri-planner/models"
	"nutri-planner/storage"
)

// RelationshipChecker reports whether a nutritionist follows a patient.
type RelationshipChecker interface {
	HasRelationship(ctx context.Context, nutritionistID, patientID string) (bool, error)
}

type EvaluationService struct {
	db    *storage.DB
	evals *storage.Collection[models.MealEvaluation]
	meals *storage.Collection[models.MealLogEntry]
	rel   RelationshipChecker
	log   *zap.Logger
	now   func() time.Time
}

func NewEvaluationService(db *storage.DB, rel RelationshipChecker, log *zap.Logger, now func() time.Time) *EvaluationService {
	if now == nil {
		now = time.Now
	}
	return &EvaluationService{
		db:    db,
		evals: storage.NewCollection[models.MealEvaluation](db, storage.MealEvaluations),
		meals: storage.NewCollection[models.MealLogEntry](db, storage.Meals),
		rel:   rel,
		log:   log,
		now:   now,
	}
}

// EvaluateMeal rates a logged meal. A second evaluation of the same entry
// replaces the first one in place.
func (s *EvaluationService) EvaluateMeal(ctx context.Context, entryID, patientID string, nutritionist models.User, rating models.Rating, note string) (*models.MealEvaluation, error) {
	if nutritionist.Role != models.RoleNutritionist {
		return nil, models.ErrForbidden
	}
	if !rating.Valid() {
		return nil, &models.ValidationError{Field: "rating", Msg: "must be good, neutral or bad"}
	}

	ev := models.MealEvaluation{
		ID:               uuid.NewString(),
		MealLogEntryID:   entryID,
		PatientID:        patientID,
		NutritionistID:   nutritionist.ID,
		NutritionistName: nutritionist.Name,
		Rating:           rating,
		Note:             strings.TrimSpace(note),
		EvaluatedAt:      s.now().UTC(),
	}
	// Entry lookup and upsert run under one write lock, as DeleteMeal does.
	err := s.db.Update(ctx, func(ctx context.Context) error {
		meals, err := s.meals.Load(ctx)
		if err != nil {
			return err
		}
		found := false
		for _, m := range meals {
			if m.ID == entryID && m.PatientID == patientID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("meal %s: %w", entryID, models.ErrNotFound)
		}

		ok, err := s.rel.HasRelationship(ctx, nutritionist.ID, patientID)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Warn("meal evaluation outside relationship",
				zap.String("nutritionist_id", nutritionist.ID),
				zap.String("patient_id", patientID))
			return models.ErrForbidden
		}

		evals, err := s.evals.Load(ctx)
		if err != nil {
			return err
		}
		for i := range evals {
			if evals[i].MealLogEntryID == entryID {
				ev.ID = evals[i].ID
				evals[i] = ev
				return s.evals.Save(ctx, evals)
			}
		}
		return s.evals.Save(ctx, append(evals, ev))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("meal evaluated",
		zap.String("entry_id", entryID),
		zap.String("nutritionist_id", nutritionist.ID),
		zap.String("rating", string(rating)))
	return &ev, nil
}

// GetEvaluationFor returns nil without error when the entry was not rated.
func (s *EvaluationService) GetEvaluationFor(ctx context.Context, entryID string) (*models.MealEvaluation, error) {
	evals, err := s.evals.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range evals {
		if evals[i].MealLogEntryID == entryID {
			ev := evals[i]
			return &ev, nil
		}
	}
	return nil, nil
}

// ForEntries indexes the evaluations of the given entries by entry id.
func (s *EvaluationService) ForEntries(ctx context.Context, entryIDs []string) (map[string]models.MealEvaluation, error) {
	evals, err := s.evals.Load(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(entryIDs))
	for _, id := range entryIDs {
		want[id] = true
	}
	out := map[string]models.MealEvaluation{}
	for _, e := range evals {
		if want[e.MealLogEntryID] {
			out[e.MealLogEntryID] = e
		}
	}
	return out, nil
}
