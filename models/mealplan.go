package models

import (
	"fmt"
	"strings"
)

type Slot string

const (
	SlotBreakfast Slot = "breakfast"
	SlotLunch     Slot = "lunch"
	SlotSnack     Slot = "snack"
	SlotDinner    Slot = "dinner"
)

// MinDishesPerSlot is how many options every slot needs before a plan can be issued.
const MinDishesPerSlot = 3

var Slots = []Slot{SlotBreakfast, SlotLunch, SlotSnack, SlotDinner}

var slotLabels = map[Slot]string{
	SlotBreakfast: "Café da manhã",
	SlotLunch:     "Almoço",
	SlotSnack:     "Lanche da tarde",
	SlotDinner:    "Jantar",
}

var slotImages = map[Slot]string{
	SlotBreakfast: "../assets/img/cafe_manha.jpg",
	SlotLunch:     "../assets/img/almoco.jpg",
	SlotSnack:     "../assets/img/lancheTarde.jpg",
	SlotDinner:    "../assets/img/jantar.jpg",
}

func (s Slot) Valid() bool {
	_, ok := slotLabels[s]
	return ok
}

func (s Slot) Label() string {
	return slotLabels[s]
}

// SlotForLabel maps a display label back to its slot.
func SlotForLabel(label string) (Slot, bool) {
	for s, l := range slotLabels {
		if l == label {
			return s, true
		}
	}
	return "", false
}

// ImageFor returns the picture shown for a slot label, falling back to breakfast.
func ImageFor(label string) string {
	if s, ok := SlotForLabel(label); ok {
		return slotImages[s]
	}
	return slotImages[SlotBreakfast]
}

type Dish struct {
	Name     string  `json:"name"`
	Kcal     float64 `json:"kcal"`
	CarbG    float64 `json:"carbG"`
	ProteinG float64 `json:"proteinG"`
	FatG     float64 `json:"fatG"`
	Notes    string  `json:"notes,omitempty"`
}

// MealPlan lists the dish options per slot.
type MealPlan map[Slot][]Dish

func NewMealPlan() MealPlan {
	p := make(MealPlan, len(Slots))
	for _, s := range Slots {
		p[s] = []Dish{}
	}
	return p
}

func (p MealPlan) AddDish(slot Slot, d Dish) error {
	if !slot.Valid() {
		return &ValidationError{Field: "slot", Msg: fmt.Sprintf("unknown meal slot %q", slot)}
	}
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Field: "name", Msg: "dish name is required"}
	}
	if d.Kcal <= 0 {
		return &ValidationError{Field: "kcal", Msg: "dish calories must be positive"}
	}
	p[slot] = append(p[slot], d)
	return nil
}

// RemoveDish drops the dish at index; out-of-range indexes are ignored.
func (p MealPlan) RemoveDish(slot Slot, index int) {
	dishes := p[slot]
	if index < 0 || index >= len(dishes) {
		return
	}
	p[slot] = append(dishes[:index:index], dishes[index+1:]...)
}

func (p MealPlan) ValidateForSubmission() error {
	for _, s := range Slots {
		if n := len(p[s]); n < MinDishesPerSlot {
			return &ValidationError{
				Field: string(s),
				Msg:   fmt.Sprintf("%s needs at least %d dishes, has %d", s.Label(), MinDishesPerSlot, n),
			}
		}
	}
	return nil
}

func (p MealPlan) Dish(slot Slot, index int) (Dish, bool) {
	dishes := p[slot]
	if index < 0 || index >= len(dishes) {
		return Dish{}, false
	}
	return dishes[index], true
}
