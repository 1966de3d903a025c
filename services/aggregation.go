package services

import (
	"math"

	"nutri-planner/models"
)

// Energy density of each macronutrient, kcal per gram.
const (
	KcalPerGramCarb    = 4
	KcalPerGramProtein = 4
	KcalPerGramFat     = 9
)

type Totals struct {
	Kcal     float64 `json:"kcal"`
	CarbG    float64 `json:"carbG"`
	ProteinG float64 `json:"proteinG"`
	FatG     float64 `json:"fatG"`
}

// DailyTotals sums the entries as they are; rounding is left to display.
func DailyTotals(entries []models.MealLogEntry) Totals {
	var t Totals
	for _, e := range entries {
		t.Kcal += e.Kcal
		t.CarbG += e.Macros.CarbG
		t.ProteinG += e.Macros.ProteinG
		t.FatG += e.Macros.FatG
	}
	return t
}

// PrescriptionTargets converts calorie target and macro percentages to grams.
func PrescriptionTargets(p models.Prescription) Totals {
	m := p.MacroTargets
	return Totals{
		Kcal:     p.CalorieTarget,
		CarbG:    p.CalorieTarget * m.CarbPct / 100 / KcalPerGramCarb,
		ProteinG: p.CalorieTarget * m.ProteinPct / 100 / KcalPerGramProtein,
		FatG:     p.CalorieTarget * m.FatPct / 100 / KcalPerGramFat,
	}
}

// PlanTargets is a reference day for a meal plan: the average dish of every
// slot, summed. Empty slots contribute nothing.
func PlanTargets(plan models.MealPlan) Totals {
	var t Totals
	for _, slot := range models.Slots {
		dishes := plan[slot]
		if len(dishes) == 0 {
			continue
		}
		n := float64(len(dishes))
		for _, d := range dishes {
			t.Kcal += d.Kcal / n
			t.CarbG += d.CarbG / n
			t.ProteinG += d.ProteinG / n
			t.FatG += d.FatG / n
		}
	}
	return t
}

type MacroProgress struct {
	ConsumedG float64 `json:"consumedG"`
	TargetG   float64 `json:"targetG"`
	Percent   float64 `json:"percent"`
}

type Progress struct {
	TargetKcal    float64       `json:"targetKcal"`
	ConsumedKcal  float64       `json:"consumedKcal"`
	RemainingKcal float64       `json:"remainingKcal"`
	Percent       float64       `json:"percent"`
	Carb          MacroProgress `json:"carb"`
	Protein       MacroProgress `json:"protein"`
	Fat           MacroProgress `json:"fat"`
}

// ComputeProgress compares consumed totals to a target day. Remaining kcal
// never goes below zero and percentages stop at 100.
func ComputeProgress(consumed, target Totals) Progress {
	return Progress{
		TargetKcal:    target.Kcal,
		ConsumedKcal:  consumed.Kcal,
		RemainingKcal: math.Max(0, target.Kcal-consumed.Kcal),
		Percent:       percentOf(consumed.Kcal, target.Kcal),
		Carb:          MacroProgress{ConsumedG: consumed.CarbG, TargetG: target.CarbG, Percent: percentOf(consumed.CarbG, target.CarbG)},
		Protein:       MacroProgress{ConsumedG: consumed.ProteinG, TargetG: target.ProteinG, Percent: percentOf(consumed.ProteinG, target.ProteinG)},
		Fat:           MacroProgress{ConsumedG: consumed.FatG, TargetG: target.FatG, Percent: percentOf(consumed.FatG, target.FatG)},
	}
}

// ProgressFor picks the target from whichever evaluation the diagnostic holds.
func ProgressFor(consumed Totals, d *models.DiagnosticRecord) *Progress {
	switch {
	case d == nil:
		return nil
	case d.MealPlan != nil:
		p := ComputeProgress(consumed, PlanTargets(d.MealPlan))
		return &p
	case d.Prescription != nil:
		p := ComputeProgress(consumed, PrescriptionTargets(*d.Prescription))
		return &p
	}
	return nil
}

func percentOf(v, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return math.Min(100, v/target*100)
}
