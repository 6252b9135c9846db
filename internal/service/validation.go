package service

import (
	"fmt"
	"time"

	"field-service/internal/model"
	"field-service/internal/utils"
)

// Crops offered by the registration form.
var Crops = []string{
	"Rice",
	"Wheat",
	"Maize",
	"Tomato",
	"Potato",
	"Onion",
	"Cotton",
	"Sugarcane",
	"Soybean",
	"Chickpea",
	"Lentil",
	"Mango",
	"Banana",
	"Other",
}

const defaultVariety = "Not specified"

func parseDay(value string) (time.Time, error) {
	return time.Parse(time.DateOnly, value)
}

// today is the calendar date of now in its own location.
func today(now time.Time) string {
	return now.Format(time.DateOnly)
}

// wallClock reads now's local date and time as if it were UTC, so it can be
// compared with dates parsed by parseDay.
func wallClock(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.UTC)
}

func checkName(name string, r *reasons) {
	if utils.NormalizeLabel(name) == "" {
		r.add("field name is required")
	}
}

func checkCrop(crop string, r *reasons) {
	if utils.NormalizeLabel(crop) == "" {
		r.add("crop type is required")
		return
	}
	if _, ok := utils.MatchOption(crop, Crops); !ok {
		r.add(fmt.Sprintf("crop type %q is not supported", crop))
	}
}

func checkSowingDate(value string, now time.Time, r *reasons) {
	if value == "" {
		r.add("sowing date is required")
		return
	}
	if _, err := parseDay(value); err != nil {
		r.add("sowing date must be formatted YYYY-MM-DD")
		return
	}
	if value > today(now) {
		r.add("sowing date cannot be in the future")
	}
}

func checkHarvestDate(harvest, sowing string, r *reasons) {
	if harvest == "" {
		return
	}
	h, err := parseDay(harvest)
	if err != nil {
		r.add("expected harvest date must be formatted YYYY-MM-DD")
		return
	}
	if s, err := parseDay(sowing); err == nil && !h.After(s) {
		r.add("expected harvest date must be after the sowing date")
	}
}

func checkHealth(h model.VegetationIndices, r *reasons) {
	switch h.Status {
	case model.HealthHealthy, model.HealthMonitor, model.HealthStress:
	default:
		r.add(fmt.Sprintf("health status %q is not one of healthy, monitor, stress", h.Status))
	}
	if h.NDVI < -1 || h.NDVI > 1 {
		r.add("ndvi must be between -1 and 1")
	}
}
