package models

import "time"

type DiagnosticStatus string

const (
	StatusDraft     DiagnosticStatus = "draft"
	StatusSubmitted DiagnosticStatus = "submitted"
	StatusEvaluated DiagnosticStatus = "evaluated"
)

type ConsumptionFrequency struct {
	Sodas          bool `json:"sodas"`
	FriedFood      bool `json:"friedFood"`
	Sweets         bool `json:"sweets"`
	UltraProcessed bool `json:"ultraProcessed"`
}

type HealthInfo struct {
	DateOfBirth          string               `json:"dateOfBirth"` // YYYY-MM-DD
	Age                  int                  `json:"age"`
	Sex                  string               `json:"sex"`
	Occupation           string               `json:"occupation"`
	ActivityLevel        string               `json:"activityLevel"`
	SleepQuality         string               `json:"sleepQuality"`
	MealsPerDay          string               `json:"mealsPerDay"`
	MealTimes            string               `json:"mealTimes"`
	Snacking             string               `json:"snacking"`
	Preferences          string               `json:"preferences"`
	Restrictions         string               `json:"restrictions"`
	ConsumptionFrequency ConsumptionFrequency `json:"consumptionFrequency"`
	WaterIntake          string               `json:"waterIntake"`
	SkipsMeals           string               `json:"skipsMeals"`
}

type MedicalHistory struct {
	DiagnosedConditions string `json:"diagnosedConditions"`
	Medications         string `json:"medications"`
	Supplements         string `json:"supplements"`
	Digestion           string `json:"digestion"`
	GeneralComplaints   string `json:"generalComplaints"`
}

type MacroTargets struct {
	CarbPct    float64 `json:"carbPct"`
	ProteinPct float64 `json:"proteinPct"`
	FatPct     float64 `json:"fatPct"`
}

// Prescription is the calorie/macro variant of an evaluation.
type Prescription struct {
	CalorieTarget float64      `json:"calorieTarget"`
	MacroTargets  MacroTargets `json:"macroTargets"`
	Notes         string       `json:"notes,omitempty"`
}

type DiagnosticRecord struct {
	ID             string           `json:"id"`
	PatientID      string           `json:"patientId"`
	PatientName    string           `json:"patientName"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	Status         DiagnosticStatus `json:"status"`
	HealthInfo     HealthInfo       `json:"healthInfo"`
	MedicalHistory MedicalHistory   `json:"medicalHistory"`
	MainGoal       string           `json:"mainGoal"`

	NutritionistID   string     `json:"nutritionistId,omitempty"`
	NutritionistName string     `json:"nutritionistName,omitempty"`
	EvaluatedAt      *time.Time `json:"evaluatedAt,omitempty"`

	// Exactly one of these is set once the record is evaluated.
	Prescription *Prescription `json:"prescription,omitempty"`
	MealPlan     MealPlan      `json:"mealPlan,omitempty"`
}

// AgeAt derives the age in whole years from a YYYY-MM-DD birth date.
// Unparseable dates give zero.
func AgeAt(dateOfBirth string, now time.Time) int {
	born, err := time.Parse(time.DateOnly, dateOfBirth)
	if err != nil {
		return 0
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
