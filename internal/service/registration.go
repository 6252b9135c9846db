package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"field-service/internal/capture"
	"field-service/internal/geometry"
	"field-service/internal/model"
	"field-service/internal/repository"
	"field-service/internal/utils"
)

type RegistrationState string

// areaTolerance is the relative difference between a supplied and a measured
// area below which the supplied figure is not kept.
const areaTolerance = 0.01

const (
	StateCapturing RegistrationState = "capturing"
	StateReviewing RegistrationState = "reviewing"
	StateSaved     RegistrationState = "saved"
)

// FieldForm is what the farmer fills in after the boundary is captured.
type FieldForm struct {
	Name                string `json:"name"`
	CropType            string `json:"cropType"`
	Variety             string `json:"variety"`
	SowingDate          string `json:"sowingDate"`
	ExpectedHarvestDate string `json:"expectedHarvestDate"`
	IrrigationMethod    string `json:"irrigationMethod"`
	WateringFrequency   string `json:"wateringFrequency"`
	SoilType            string `json:"soilType"`
	Notes               string `json:"notes"`
}

// RegistrationFlow walks one field from boundary capture to a saved record.
// It is not safe for concurrent use.
type RegistrationFlow struct {
	store *repository.FieldStore
	log   zerolog.Logger
	now   func() time.Time
	loc   *time.Location

	state    RegistrationState
	boundary *capture.Result
	field    *model.Field
}

func (s *FieldService) NewRegistration() *RegistrationFlow {
	return &RegistrationFlow{
		store: s.store,
		log:   s.log,
		now:   s.now,
		loc:   s.loc,
		state: StateCapturing,
	}
}

func (r *RegistrationFlow) State() RegistrationState {
	return r.state
}

// SetBoundary accepts a captured boundary and moves the flow to review.
func (r *RegistrationFlow) SetBoundary(res capture.Result) error {
	if r.state != StateCapturing {
		return fmt.Errorf("%w: boundary can only be set while capturing", ErrConflict)
	}

	var problems reasons
	var measured float64
	if res.Coordinates.Vertices() < 3 {
		problems.add("boundary needs at least 3 points")
	} else if ha, err := geometry.RingHectares(res.Coordinates); err != nil || !(ha > 0) {
		problems.add("boundary area must be greater than zero")
	} else {
		measured = ha
	}
	if res.Method != "" && !res.Method.Valid() {
		problems.add(fmt.Sprintf("mapping method %q is not supported", res.Method))
	}
	if err := problems.err(); err != nil {
		return err
	}

	// A client area that disagrees with the ring survives only as a preview.
	boundary := res
	if res.AreaHectares > 0 && math.Abs(res.AreaHectares-measured) > areaTolerance*measured && res.PreviewHectares == nil {
		claimed := res.AreaHectares
		boundary.PreviewHectares = &claimed
	}
	boundary.AreaHectares = measured
	boundary.Coordinates = res.Coordinates.Closed()
	r.boundary = &boundary
	r.state = StateReviewing
	return nil
}

// Back returns to capture and drops the pending boundary.
func (r *RegistrationFlow) Back() {
	if r.state == StateReviewing {
		r.boundary = nil
		r.state = StateCapturing
	}
}

// ValidateForm returns every reason the form cannot be saved.
func ValidateForm(form FieldForm, now time.Time) error {
	var problems reasons
	checkName(form.Name, &problems)
	checkCrop(form.CropType, &problems)
	checkSowingDate(form.SowingDate, now, &problems)
	checkHarvestDate(form.ExpectedHarvestDate, form.SowingDate, &problems)
	return problems.err()
}

// Save validates the form and stores the field with its "created" event in
// one transaction.
func (r *RegistrationFlow) Save(ctx context.Context, form FieldForm, actor model.Actor) (*model.Field, error) {
	switch r.state {
	case StateSaved:
		return nil, fmt.Errorf("%w: field already saved", ErrConflict)
	case StateCapturing:
		return nil, fmt.Errorf("%w: capture a boundary first", ErrConflict)
	}

	now := r.now().UTC()
	if err := ValidateForm(form, now.In(r.loc)); err != nil {
		return nil, err
	}

	crop, _ := utils.MatchOption(form.CropType, Crops)
	variety := utils.NormalizeLabel(form.Variety)
	if variety == "" {
		variety = defaultVariety
	}

	b := r.boundary
	field := model.Field{
		ID:                  r.store.GenerateID(),
		UserID:              actor.UserID,
		Name:                utils.NormalizeLabel(form.Name),
		CropType:            crop,
		Variety:             variety,
		Area:                b.AreaHectares,
		SowingDate:          form.SowingDate,
		ExpectedHarvestDate: form.ExpectedHarvestDate,
		IrrigationMethod:    form.IrrigationMethod,
		WateringFrequency:   form.WateringFrequency,
		SoilType:            form.SoilType,
		Notes:               form.Notes,
		Coordinates:         b.Coordinates,
		GPSTrace:            b.GPSTrace,
		LocationAccuracy:    b.Accuracy,
		MappingMethod:       string(b.Method),
		Quadrants:           model.DefaultQuadrants(),
		AnalysisHistory:     []model.AnalysisSnapshot{},
		CreatedAt:           now,
		UpdatedAt:           now,
		Events:              []model.FieldEvent{},
		EditAudits:          []model.EditAudit{},
	}

	points := b.Coordinates.Vertices()
	event := model.FieldEvent{
		ID:          r.store.GenerateID(),
		Type:        model.EventCreated,
		Timestamp:   now,
		UserID:      actor.UserID,
		UserName:    actor.UserName,
		Description: fmt.Sprintf("Field %q created (%.2f ha, %d boundary points)", field.Name, field.Area, points),
		Metadata: map[string]any{
			"area":     field.Area,
			"cropType": field.CropType,
			"method":   field.MappingMethod,
			"points":   points,
		},
	}

	if err := r.store.CreateField(ctx, field, event); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("field_id", field.ID).
		Str("method", field.MappingMethod).
		Float64("area_ha", field.Area).
		Msg("field registered")

	r.field = &field
	r.state = StateSaved
	return &field, nil
}

// Field is the saved record once the flow has finished.
func (r *RegistrationFlow) Field() (*model.Field, bool) {
	return r.field, r.field != nil
}

// RegisterInput carries a finished capture and the form in one request.
type RegisterInput struct {
	Boundary capture.Result `json:"boundary"`
	Form     FieldForm      `json:"form"`
}

// Register runs a whole registration in one call.
func (s *FieldService) Register(ctx context.Context, in RegisterInput, actor model.Actor) (*model.Field, error) {
	flow := s.NewRegistration()
	if err := flow.SetBoundary(in.Boundary); err != nil {
		return nil, err
	}
	return flow.Save(ctx, in.Form, actor)
}
