package model

import (
	"time"

	"field-service/internal/geometry"
)

// FieldPatch is a partial update. Nil members are left untouched. Health and
// bookkeeping members are set by the store, never decoded from a request.
type FieldPatch struct {
	Name                *string            `json:"name,omitempty"`
	CropType            *string            `json:"cropType,omitempty"`
	Variety             *string            `json:"variety,omitempty"`
	Area                *float64           `json:"area,omitempty"`
	SowingDate          *string            `json:"sowingDate,omitempty"`
	ExpectedHarvestDate *string            `json:"expectedHarvestDate,omitempty"`
	IrrigationMethod    *string            `json:"irrigationMethod,omitempty"`
	WateringFrequency   *string            `json:"wateringFrequency,omitempty"`
	SoilType            *string            `json:"soilType,omitempty"`
	Notes               *string            `json:"notes,omitempty"`
	Coordinates         geometry.Ring      `json:"coordinates,omitempty"`
	Quadrants           []Quadrant         `json:"quadrants,omitempty"`
	CurrentHealth       *VegetationIndices `json:"-"`
	LastAnalysis        *time.Time         `json:"-"`
	EditCount           *int               `json:"-"`
	EditAudits          []EditAudit        `json:"-"`
}

func (p FieldPatch) IsEmpty() bool {
	return p.Name == nil && p.CropType == nil && p.Variety == nil && p.Area == nil &&
		p.SowingDate == nil && p.ExpectedHarvestDate == nil && p.IrrigationMethod == nil &&
		p.WateringFrequency == nil && p.SoilType == nil && p.Notes == nil &&
		p.Coordinates == nil && p.Quadrants == nil && p.CurrentHealth == nil &&
		p.LastAnalysis == nil && p.EditCount == nil && p.EditAudits == nil
}

// Apply merges the patch onto f.
func (p FieldPatch) Apply(f *Field) {
	setString(&f.Name, p.Name)
	setString(&f.CropType, p.CropType)
	setString(&f.Variety, p.Variety)
	setString(&f.SowingDate, p.SowingDate)
	setString(&f.ExpectedHarvestDate, p.ExpectedHarvestDate)
	setString(&f.IrrigationMethod, p.IrrigationMethod)
	setString(&f.WateringFrequency, p.WateringFrequency)
	setString(&f.SoilType, p.SoilType)
	setString(&f.Notes, p.Notes)
	if p.Area != nil {
		f.Area = *p.Area
	}
	if p.Coordinates != nil {
		f.Coordinates = p.Coordinates
	}
	if p.Quadrants != nil {
		f.Quadrants = p.Quadrants
	}
	if p.CurrentHealth != nil {
		health := *p.CurrentHealth
		f.CurrentHealth = &health
	}
	if p.LastAnalysis != nil {
		at := *p.LastAnalysis
		f.LastAnalysis = &at
	}
	if p.EditCount != nil {
		f.EditCount = *p.EditCount
	}
	if p.EditAudits != nil {
		f.EditAudits = p.EditAudits
	}
}

// Changes lists the user-editable attributes the patch would change on f.
func (p FieldPatch) Changes(f Field) []FieldChange {
	var changes []FieldChange
	diff := func(name string, before, after *string) {
		if after != nil && *after != *before {
			changes = append(changes, FieldChange{Field: name, Before: *before, After: *after})
		}
	}

	diff("name", &f.Name, p.Name)
	diff("cropType", &f.CropType, p.CropType)
	diff("variety", &f.Variety, p.Variety)
	diff("sowingDate", &f.SowingDate, p.SowingDate)
	diff("expectedHarvestDate", &f.ExpectedHarvestDate, p.ExpectedHarvestDate)
	diff("irrigationMethod", &f.IrrigationMethod, p.IrrigationMethod)
	diff("wateringFrequency", &f.WateringFrequency, p.WateringFrequency)
	diff("soilType", &f.SoilType, p.SoilType)
	diff("notes", &f.Notes, p.Notes)

	if p.Area != nil && *p.Area != f.Area {
		changes = append(changes, FieldChange{Field: "area", Before: f.Area, After: *p.Area})
	}
	if p.Coordinates != nil {
		changes = append(changes, FieldChange{Field: "coordinates", Before: f.Coordinates.Vertices(), After: p.Coordinates.Vertices()})
	}
	if p.Quadrants != nil {
		changes = append(changes, FieldChange{Field: "quadrants", Before: len(f.Quadrants), After: len(p.Quadrants)})
	}
	return changes
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
