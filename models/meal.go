package models

import "time"

type Macros struct {
	CarbG    float64 `json:"carbG"`
	ProteinG float64 `json:"proteinG"`
	FatG     float64 `json:"fatG"`
}

// MealLogEntry is what a patient ate. Numbers are copied at logging time
// and do not follow later plan edits.
type MealLogEntry struct {
	ID                          string    `json:"id"`
	PatientID                   string    `json:"patientId"`
	SlotName                    string    `json:"slotName"`
	Description                 string    `json:"description"`
	Kcal                        float64   `json:"kcal"`
	Macros                      Macros    `json:"macros"`
	Timestamp                   time.Time `json:"timestamp"`
	ImageRef                    string    `json:"imageRef"`
	PatientNote                 string    `json:"patientNote,omitempty"`
	NutritionistNoteAtSelection string    `json:"nutritionistNoteAtSelection,omitempty"`
}

type Rating string

const (
	RatingGood    Rating = "good"
	RatingNeutral Rating = "neutral"
	RatingBad     Rating = "bad"
)

func (r Rating) Valid() bool {
	switch r {
	case RatingGood, RatingNeutral, RatingBad:
		return true
	}
	return false
}

type MealEvaluation struct {
	ID               string    `json:"id"`
	MealLogEntryID   string    `json:"mealLogEntryId"`
	PatientID        string    `json:"patientId"`
	NutritionistID   string    `json:"nutritionistId"`
	NutritionistName string    `json:"nutritionistName"`
	Rating           Rating    `json:"rating"`
	Note             string    `json:"note,omitempty"`
	EvaluatedAt      time.Time `json:"evaluatedAt"`
}
