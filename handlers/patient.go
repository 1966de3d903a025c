package handlers

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"nutri-planner/app"
	"nutri-planner/auth"
	"nutri-planner/models"
	"nutri-planner/services"
)

// GetDraft returns the patient's saved questionnaire, or a fresh one.
func GetDraft(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.UserFrom(c)
		draft, err := s.Diagnostics.Draft(c.Request.Context(), user.ID)
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusOK, s.Diagnostics.CreateDraft(user.ID, user.Name))
			return
		}
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, draft)
	}
}

// bindDiagnostic reads a questionnaire from the body and pins it to the caller.
func bindDiagnostic(c *gin.Context, user models.User) (*models.DiagnosticRecord, bool) {
	var rec models.DiagnosticRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		badRequest(c, "Invalid input")
		return nil, false
	}
	rec.PatientID = user.ID
	rec.PatientName = user.Name
	rec.Status = models.StatusDraft
	rec.NutritionistID, rec.NutritionistName, rec.EvaluatedAt = "", "", nil
	rec.Prescription, rec.MealPlan = nil, nil
	return &rec, true
}

func SaveDraft(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := bindDiagnostic(c, auth.UserFrom(c))
		if !ok {
			return
		}
		if err := s.Diagnostics.SaveDraft(c.Request.Context(), rec); err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func SubmitDiagnostic(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.UserFrom(c)
		rec, ok := bindDiagnostic(c, user)
		if !ok {
			return
		}
		if rec.ID == "" {
			rec.ID = s.Diagnostics.CreateDraft(user.ID, user.Name).ID
		}
		if err := s.Diagnostics.Submit(c.Request.Context(), rec); err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"diagnostic": rec, "redirect": auth.PageSummary})
	}
}

func CurrentDiagnostic(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := s.Diagnostics.Current(c.Request.Context(), auth.UserFrom(c).ID)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func CurrentPlan(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		plan, err := s.Diagnostics.CurrentPlan(c.Request.Context(), auth.UserFrom(c).ID)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"plan": plan, "slots": slotViews()})
	}
}

type slotView struct {
	Slot  models.Slot `json:"slot"`
	Label string      `json:"label"`
	Image string      `json:"image"`
}

func slotViews() []slotView {
	out := make([]slotView, len(models.Slots))
	for i, slot := range models.Slots {
		out[i] = slotView{Slot: slot, Label: slot.Label(), Image: models.ImageFor(slot.Label())}
	}
	return out
}

// ExportDiagnostic downloads the patient's current diagnostic as JSON.
func ExportDiagnostic(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := s.Diagnostics.Current(c.Request.Context(), auth.UserFrom(c).ID)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		name, data, err := services.DiagnosticJSON(rec)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		attachment(c, name, "application/json", data)
	}
}

func LogMeal(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			SlotName string `json:"slotName"`
			services.Selection
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "Invalid input")
			return
		}
		entry, err := s.Meals.LogMeal(c.Request.Context(), auth.UserFrom(c).ID, body.SlotName, body.Selection)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

// dayParam reads ?date=YYYY-MM-DD, defaulting to today.
func dayParam(c *gin.Context, s *app.State) string {
	if d := c.Query("date"); d != "" {
		return d
	}
	return s.Meals.Today()
}

func ListMeals(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		day := dayParam(c, s)
		meals, err := s.Meals.ListMealsForDay(c.Request.Context(), auth.UserFrom(c).ID, day)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"date": day, "meals": meals, "totals": services.DailyTotals(meals)})
	}
}

func DeleteMeal(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("confirm") != "true" {
			badRequest(c, "Deletion must be confirmed with confirm=true")
			return
		}
		if err := s.Meals.DeleteMeal(c.Request.Context(), auth.UserFrom(c).ID, c.Param("id")); err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Meal deleted"})
	}
}

func Dashboard(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := s.Exports.DaySnapshot(c.Request.Context(), auth.UserFrom(c), dayParam(c, s))
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// Week summarizes seven days starting at ?start, or the six days before today.
func Week(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := c.Query("start")
		if start == "" {
			start = s.Meals.WeekStart(s.Meals.Today())
		}
		week, err := s.Meals.WeeklySummary(c.Request.Context(), auth.UserFrom(c).ID, start)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"start": start, "days": week})
	}
}

func ExportDay(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := s.Exports.DaySnapshot(c.Request.Context(), auth.UserFrom(c), dayParam(c, s))
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		name, data, err := services.SnapshotJSON(snap)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		attachment(c, name, "application/json", data)
	}
}

func PrintDay(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := s.Exports.DaySnapshot(c.Request.Context(), auth.UserFrom(c), dayParam(c, s))
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		var page bytes.Buffer
		if err := services.PrintDay(&page, snap, s.Meals.Location()); err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page.Bytes())
	}
}

func PrintDayPDF(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := s.Exports.DaySnapshot(c.Request.Context(), auth.UserFrom(c), dayParam(c, s))
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		name, buf, err := services.DayPDF(snap, s.Meals.Location())
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		attachment(c, name, "application/pdf", buf.Bytes())
	}
}

func attachment(c *gin.Context, name, contentType string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, contentType, data)
}
