package model

type MeasurementUnit string

const (
	UnitMetric   MeasurementUnit = "metric"
	UnitImperial MeasurementUnit = "imperial"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

type UserPreferences struct {
	Language        string          `json:"language"`
	MeasurementUnit MeasurementUnit `json:"measurementUnit"`
	Theme           Theme           `json:"theme"`
}

func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Language:        "en",
		MeasurementUnit: UnitMetric,
		Theme:           ThemeAuto,
	}
}

func (p UserPreferences) Valid() bool {
	if p.Language == "" {
		return false
	}
	switch p.MeasurementUnit {
	case UnitMetric, UnitImperial:
	default:
		return false
	}
	switch p.Theme {
	case ThemeLight, ThemeDark, ThemeAuto:
	default:
		return false
	}
	return true
}
