package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"field-service/internal/geometry"
	"field-service/internal/model"
	"field-service/internal/repository"
	"field-service/internal/utils"
)

// yieldGrowthThreshold is the share of the growth cycle after which a yield
// prediction is offered.
const yieldGrowthThreshold = 0.85

type FieldService struct {
	store *repository.FieldStore
	log   zerolog.Logger
	now   func() time.Time
	// loc decides which calendar day "today" is for sowing dates and growth.
	loc *time.Location
}

func NewFieldService(store *repository.FieldStore, loc *time.Location, log zerolog.Logger) *FieldService {
	if loc == nil {
		loc = time.UTC
	}
	return &FieldService{
		store: store,
		log:   log.With().Str("component", "field_service").Logger(),
		now:   time.Now,
		loc:   loc,
	}
}

func (s *FieldService) List(ctx context.Context) ([]model.Field, error) {
	return s.store.GetAllFields(ctx)
}

func (s *FieldService) Get(ctx context.Context, id string) (*model.Field, error) {
	return getField(ctx, s.store, id)
}

func getField(ctx context.Context, store *repository.FieldStore, id string) (*model.Field, error) {
	field, err := store.GetFieldByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return field, nil
}

func (s *FieldService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteField(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("field_id", id).Msg("field deleted")
	return nil
}

// Edit applies a partial update, recording what changed as an edit audit on
// the field and an "edit" event on its timeline.
func (s *FieldService) Edit(ctx context.Context, id string, patch model.FieldPatch, actor model.Actor) (*model.Field, error) {
	// Health comes from snapshots and bookkeeping from the service.
	patch.CurrentHealth = nil
	patch.LastAnalysis = nil
	patch.EditCount = nil
	patch.EditAudits = nil
	if patch.IsEmpty() {
		return nil, &ValidationError{Reasons: []string{"no changes supplied"}}
	}

	var updated *model.Field
	err := s.store.Transaction(ctx, func(tx *repository.FieldStore) error {
		field, err := getField(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.normalizePatch(&patch, *field); err != nil {
			return err
		}

		changes := patch.Changes(*field)
		if len(changes) == 0 {
			updated = field
			return nil
		}

		now := s.now().UTC()
		audit := model.EditAudit{
			ID:        tx.GenerateID(),
			Timestamp: now,
			UserID:    actor.UserID,
			UserName:  actor.UserName,
			Changes:   changes,
		}
		count := field.EditCount + 1
		patch.EditCount = &count
		patch.EditAudits = append(append([]model.EditAudit{}, field.EditAudits...), audit)

		if err := tx.UpdateField(ctx, id, patch); err != nil {
			return err
		}

		names := make([]string, 0, len(changes))
		for _, c := range changes {
			names = append(names, c.Field)
		}
		event := model.FieldEvent{
			ID:          tx.GenerateID(),
			Type:        model.EventEdit,
			Timestamp:   now,
			UserID:      actor.UserID,
			UserName:    actor.UserName,
			Description: "Field details updated: " + strings.Join(names, ", "),
			Metadata: map[string]any{
				"auditId": audit.ID,
				"changes": changes,
			},
		}
		if err := tx.SaveEvent(ctx, id, event); err != nil {
			return err
		}

		updated, err = getField(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// normalizePatch validates the user editable members against the stored
// field and rewrites them to their canonical form. A new boundary replaces
// the area with its measured value.
func (s *FieldService) normalizePatch(p *model.FieldPatch, current model.Field) error {
	var problems reasons

	if p.Name != nil {
		name := utils.NormalizeLabel(*p.Name)
		if name == "" {
			problems.add("field name cannot be empty")
		}
		p.Name = &name
	}
	if p.CropType != nil {
		if crop, ok := utils.MatchOption(*p.CropType, Crops); ok {
			p.CropType = &crop
		} else {
			problems.add(fmt.Sprintf("crop type %q is not supported", *p.CropType))
		}
	}
	if p.Variety != nil {
		variety := utils.NormalizeLabel(*p.Variety)
		if variety == "" {
			variety = defaultVariety
		}
		p.Variety = &variety
	}

	sowing := current.SowingDate
	if p.SowingDate != nil {
		checkSowingDate(*p.SowingDate, s.now().In(s.loc), &problems)
		sowing = *p.SowingDate
	}
	harvest := current.ExpectedHarvestDate
	if p.ExpectedHarvestDate != nil {
		harvest = *p.ExpectedHarvestDate
	}
	if p.SowingDate != nil || p.ExpectedHarvestDate != nil {
		checkHarvestDate(harvest, sowing, &problems)
	}

	if p.Coordinates != nil {
		ha, err := geometry.RingHectares(p.Coordinates)
		switch {
		case err != nil:
			problems.add("boundary needs at least 3 points")
		case !(ha > 0):
			problems.add("boundary area must be greater than zero")
		default:
			p.Coordinates = p.Coordinates.Closed()
			p.Area = &ha
		}
	} else if p.Area != nil && !(*p.Area > 0) {
		problems.add("area must be greater than zero")
	}

	if p.Quadrants != nil && len(p.Quadrants) != len(model.DefaultQuadrants()) {
		problems.add("a field has exactly 4 quadrants")
	}
	return problems.err()
}

// EventInput is a user-recorded timeline entry.
type EventInput struct {
	Type        model.EventType `json:"type"`
	Description string          `json:"description"`
	Timestamp   *time.Time      `json:"timestamp"`
	Metadata    map[string]any  `json:"metadata"`
	Attachments []string        `json:"attachments"`
}

var userEventTypes = map[model.EventType]bool{
	model.EventFertilizer: true,
	model.EventIrrigation: true,
	model.EventHarvest:    true,
	model.EventNote:       true,
	model.EventPhoto:      true,
}

// AddEvent appends a user-recorded event. The created, analysis and edit
// types are written by the service itself and cannot be added here.
func (s *FieldService) AddEvent(ctx context.Context, fieldID string, in EventInput, actor model.Actor) (*model.FieldEvent, error) {
	var problems reasons
	if !userEventTypes[in.Type] {
		problems.add(fmt.Sprintf("event type %q cannot be recorded manually", in.Type))
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		problems.add("description is required")
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		at = in.Timestamp.UTC()
	}

	var event model.FieldEvent
	err := s.store.Transaction(ctx, func(tx *repository.FieldStore) error {
		if _, err := getField(ctx, tx, fieldID); err != nil {
			return err
		}
		event = model.FieldEvent{
			ID:          tx.GenerateID(),
			Type:        in.Type,
			Timestamp:   at,
			UserID:      actor.UserID,
			UserName:    actor.UserName,
			Description: description,
			Metadata:    in.Metadata,
			Attachments: in.Attachments,
		}
		return tx.SaveEvent(ctx, fieldID, event)
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Timeline lists a field's events newest first. Events with equal
// timestamps keep their insertion order.
func (s *FieldService) Timeline(ctx context.Context, fieldID string) ([]model.FieldEvent, error) {
	if _, err := s.Get(ctx, fieldID); err != nil {
		return nil, err
	}
	return timeline(ctx, s.store, fieldID)
}

func timeline(ctx context.Context, store *repository.FieldStore, fieldID string) ([]model.FieldEvent, error) {
	events, err := store.GetEventsForField(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	sorted := make([]model.FieldEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	return sorted, nil
}

// Snapshots lists a field's analysis history oldest first.
func (s *FieldService) Snapshots(ctx context.Context, fieldID string) ([]model.AnalysisSnapshot, error) {
	if _, err := s.Get(ctx, fieldID); err != nil {
		return nil, err
	}
	return history(ctx, s.store, fieldID)
}

func history(ctx context.Context, store *repository.FieldStore, fieldID string) ([]model.AnalysisSnapshot, error) {
	snapshots, err := store.GetSnapshotsForField(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	sorted := make([]model.AnalysisSnapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted, nil
}

// LatestSnapshot returns ErrNotFound when the field has never been analysed.
func (s *FieldService) LatestSnapshot(ctx context.Context, fieldID string) (*model.AnalysisSnapshot, error) {
	if _, err := s.Get(ctx, fieldID); err != nil {
		return nil, err
	}
	latest, err := s.store.GetLatestSnapshot(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

type SnapshotInput struct {
	Timestamp       *time.Time              `json:"timestamp"`
	Health          model.VegetationIndices `json:"health"`
	Quadrants       []model.Quadrant        `json:"quadrants"`
	ModelVersion    string                  `json:"modelVersion"`
	SatelliteSource string                  `json:"satelliteSource"`
	CloudCover      float64                 `json:"cloudCover"`
	Confidence      float64                 `json:"confidence"`
}

// RecordSnapshot stores an analysis reading, copies its health and quadrant
// values onto the field and logs an "analysis" event, all in one transaction.
func (s *FieldService) RecordSnapshot(ctx context.Context, fieldID string, in SnapshotInput, actor model.Actor) (*model.AnalysisSnapshot, error) {
	var problems reasons
	checkHealth(in.Health, &problems)
	if in.Confidence < 0 || in.Confidence > 1 {
		problems.add("confidence must be between 0 and 1")
	}
	if in.CloudCover < 0 || in.CloudCover > 100 {
		problems.add("cloud cover must be between 0 and 100")
	}
	if in.Quadrants != nil && len(in.Quadrants) != len(model.DefaultQuadrants()) {
		problems.add("a snapshot carries exactly 4 quadrants")
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		at = in.Timestamp.UTC()
	}

	var snapshot model.AnalysisSnapshot
	err := s.store.Transaction(ctx, func(tx *repository.FieldStore) error {
		field, err := getField(ctx, tx, fieldID)
		if err != nil {
			return err
		}

		quadrants := in.Quadrants
		if quadrants == nil {
			quadrants = field.Quadrants
		}
		snapshot = model.AnalysisSnapshot{
			ID:              tx.GenerateID(),
			Timestamp:       at,
			Health:          in.Health,
			Quadrants:       quadrants,
			ModelVersion:    in.ModelVersion,
			SatelliteSource: in.SatelliteSource,
			CloudCover:      in.CloudCover,
			Confidence:      in.Confidence,
		}
		if err := tx.SaveSnapshot(ctx, fieldID, snapshot); err != nil {
			return err
		}
		if in.Quadrants != nil {
			if err := tx.UpdateField(ctx, fieldID, model.FieldPatch{Quadrants: in.Quadrants}); err != nil {
				return err
			}
		}

		return tx.SaveEvent(ctx, fieldID, model.FieldEvent{
			ID:          tx.GenerateID(),
			Type:        model.EventAnalysis,
			Timestamp:   at,
			UserID:      actor.UserID,
			UserName:    actor.UserName,
			Description: fmt.Sprintf("Field analysis recorded: NDVI %.2f (%s)", in.Health.NDVI, in.Health.Status),
			Metadata: map[string]any{
				"snapshotId": snapshot.ID,
				"ndvi":       in.Health.NDVI,
				"status":     in.Health.Status,
				"confidence": in.Confidence,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *FieldService) Preferences(ctx context.Context) (model.UserPreferences, error) {
	return s.store.GetPreferences(ctx)
}

func (s *FieldService) SavePreferences(ctx context.Context, prefs model.UserPreferences) (model.UserPreferences, error) {
	if !prefs.Valid() {
		return model.UserPreferences{}, &ValidationError{Reasons: []string{
			"preferences need a language, a measurement unit of metric or imperial and a theme of light, dark or auto",
		}}
	}
	if err := s.store.SavePreferences(ctx, prefs); err != nil {
		return model.UserPreferences{}, err
	}
	return prefs, nil
}

func (s *FieldService) Export(ctx context.Context) ([]byte, error) {
	return s.store.ExportAllData(ctx)
}

// Import replaces the partitions present in data. Nothing is written when
// any of them fails to decode.
func (s *FieldService) Import(ctx context.Context, data []byte) error {
	if !s.store.ImportAllData(ctx, data) {
		return fmt.Errorf("%w: backup document could not be imported", ErrInvalidInput)
	}
	s.log.Info().Int("bytes", len(data)).Msg("backup imported")
	return nil
}

// Growth describes how far a field is into its crop cycle.
type Growth struct {
	Days            int     `json:"days"`
	TotalDays       int     `json:"totalDays"`
	Percentage      float64 `json:"percentage"`
	CanPredictYield bool    `json:"canPredictYield"`
	PredictionDay   int     `json:"predictionDay"`
}

// GrowthOf counts whole days since sowing, reading the calendar in now's
// location. Without a usable harvest date the
// total is zero and no prediction is offered.
func GrowthOf(field model.Field, now time.Time) Growth {
	sowing, err := parseDay(field.SowingDate)
	if err != nil {
		return Growth{}
	}
	var g Growth
	g.Days = int(math.Floor(wallClock(now).Sub(sowing).Hours() / 24))

	harvest, err := parseDay(field.ExpectedHarvestDate)
	if err != nil {
		return g
	}
	g.TotalDays = int(math.Floor(harvest.Sub(sowing).Hours() / 24))
	if g.TotalDays <= 0 {
		g.TotalDays = 0
		return g
	}
	g.Percentage = float64(g.Days) / float64(g.TotalDays) * 100
	g.CanPredictYield = g.Percentage >= yieldGrowthThreshold*100
	g.PredictionDay = int(math.Ceil(float64(g.TotalDays) * yieldGrowthThreshold))
	return g
}

// FieldDetails is everything the field dashboard shows.
type FieldDetails struct {
	Field          *model.Field             `json:"field"`
	LatestSnapshot *model.AnalysisSnapshot  `json:"latestSnapshot"`
	Snapshots      []model.AnalysisSnapshot `json:"snapshots"`
	Timeline       []model.FieldEvent       `json:"timeline"`
	Growth         Growth                   `json:"growth"`
}

func (s *FieldService) Details(ctx context.Context, id string) (*FieldDetails, error) {
	field, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.GetLatestSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	snapshots, err := history(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	events, err := timeline(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	return &FieldDetails{
		Field:          field,
		LatestSnapshot: latest,
		Snapshots:      snapshots,
		Timeline:       events,
		Growth:         GrowthOf(*field, s.now().In(s.loc)),
	}, nil
}
