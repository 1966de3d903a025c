package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nutri-planner/app"
	"nutri-planner/auth"
	"nutri-planner/models"
	"nutri-planner/services"
)

// ReviewList lists diagnostics awaiting or past review, ?status filters.
func ReviewList(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, err := s.Diagnostics.ListForReview(c.Request.Context(), models.DiagnosticStatus(c.Query("status")))
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"diagnostics": recs})
	}
}

func ReviewDetail(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := s.Diagnostics.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		if rec.Status == models.StatusDraft {
			respondError(c, s.Log, models.ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func EvaluateDiagnostic(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ev services.Evaluation
		if err := c.ShouldBindJSON(&ev); err != nil {
			badRequest(c, "Invalid input")
			return
		}
		rec, err := s.Diagnostics.Evaluate(c.Request.Context(), c.Param("id"), auth.UserFrom(c), ev)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// ValidatePlan checks a plan draft before the nutritionist sends it.
func ValidatePlan(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var plan models.MealPlan
		if err := c.ShouldBindJSON(&plan); err != nil {
			badRequest(c, "Invalid input")
			return
		}
		if err := plan.ValidateForSubmission(); err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"valid": true})
	}
}

func Patients(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		patients, err := s.Diagnostics.Patients(c.Request.Context(), auth.UserFrom(c).ID)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"patients": patients})
	}
}

// requirePatient rejects patients the nutritionist has never evaluated.
func requirePatient(c *gin.Context, s *app.State, patientID string) bool {
	ok, err := s.Diagnostics.HasRelationship(c.Request.Context(), auth.UserFrom(c).ID, patientID)
	if err != nil {
		respondError(c, s.Log, err)
		return false
	}
	if !ok {
		respondError(c, s.Log, models.ErrForbidden)
		return false
	}
	return true
}

type dayView struct {
	services.DayGroup
	Evaluations map[string]models.MealEvaluation `json:"evaluations"`
}

// PatientMeals shows a followed patient's log grouped by day, newest first.
func PatientMeals(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		patientID := c.Param("id")
		if !requirePatient(c, s, patientID) {
			return
		}
		meals, err := s.Meals.ListMeals(c.Request.Context(), patientID)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		ids := make([]string, len(meals))
		for i, m := range meals {
			ids[i] = m.ID
		}
		evals, err := s.Evaluations.ForEntries(c.Request.Context(), ids)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}

		groups := s.Meals.GroupByDay(meals)
		days := make([]dayView, len(groups))
		for i, g := range groups {
			days[i] = dayView{DayGroup: g, Evaluations: map[string]models.MealEvaluation{}}
			for _, e := range g.Entries {
				if ev, ok := evals[e.ID]; ok {
					days[i].Evaluations[e.ID] = ev
				}
			}
		}
		c.JSON(http.StatusOK, gin.H{"patientId": patientID, "days": days})
	}
}

func EvaluateMeal(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Rating models.Rating `json:"rating"`
			Note   string        `json:"note"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "Invalid input")
			return
		}
		ev, err := s.Evaluations.EvaluateMeal(c.Request.Context(), c.Param("entryId"), c.Param("id"), auth.UserFrom(c), body.Rating, body.Note)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, ev)
	}
}

func MealEvaluation(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requirePatient(c, s, c.Param("id")) {
			return
		}
		ev, err := s.Evaluations.GetEvaluationFor(c.Request.Context(), c.Param("entryId"))
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		if ev == nil || ev.PatientID != c.Param("id") {
			respondError(c, s.Log, models.ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, ev)
	}
}
