package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"field-service/internal/geometry"
	"field-service/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestGet_Unknown(t *testing.T) {
	svc := newTestFieldService(t)
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "missing"), ErrNotFound)
}

func TestEdit_RecordsAuditAndEvent(t *testing.T) {
	svc := newTestFieldService(t)
	ctx := context.Background()
	field := registerField(t, svc, "North Plot")

	updated, err := svc.Edit(ctx, field.ID, model.FieldPatch{
		Name:     ptr(" South Plot "),
		CropType: ptr("WHEAT"),
		Notes:    ptr("drains slowly"),
	}, testActor)
	require.NoError(t, err)

	assert.Equal(t, "South Plot", updated.Name)
	assert.Equal(t, "Wheat", updated.CropType)
	assert.Equal(t, "drains slowly", updated.Notes)
	assert.Equal(t, 1, updated.EditCount)
	require.Len(t, updated.EditAudits, 1)
	audit := updated.EditAudits[0]
	assert.Equal(t, testActor.UserID, audit.UserID)
	require.Len(t, audit.Changes, 3)
	assert.Equal(t, "name", audit.Changes[0].Field)
	assert.Equal(t, "North Plot", audit.Changes[0].Before)
	assert.Equal(t, "South Plot", audit.Changes[0].After)

	events, err := svc.Timeline(ctx, field.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	edit := events[0]
	if edit.Type != model.EventEdit {
		edit = events[1]
	}
	assert.Equal(t, model.EventEdit, edit.Type)
	assert.Equal(t, "Field details updated: name, cropType, notes", edit.Description)
	assert.Equal(t, audit.ID, edit.Metadata["auditId"])
}

func TestEdit_NoEffectiveChange(t *testing.T) {
	svc := newTestFieldService(t)
	ctx := context.Background()
	field := registerField(t, svc, "North Plot")

	updated, err := svc.Edit(ctx, field.ID, model.FieldPatch{Name: ptr("North Plot")}, testActor)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.EditCount)

	events, err := svc.Timeline(ctx, field.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEdit_Validation(t *testing.T) {
	svc := newTestFieldService(t)
	ctx := context.Background()
	field := registerField(t, svc, "North Plot")

	_, err := svc.Edit(ctx, field.ID, model.FieldPatch{}, testActor)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Edit(ctx, field.ID, model.FieldPatch{
		Name:                ptr(""),
		ExpectedHarvestDate: ptr("2024-01-01"),
		Coordinates:         geometry.Ring{{Lat: 1, Lng: 1}},
	}, testActor)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{
		"field name cannot be empty",
		"expected harvest date must be after the sowing date",
		"boundary needs at least 3 points",
	}, verr.Reasons)

	_, err = svc.Edit(ctx, "missing", model.FieldPatch{Name: ptr("x")}, testActor)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEdit_IgnoresHealthMembers(t *testing.T) {
	svc := newTestFieldService(t)
	ctx := context.Background()
	field := registerField(t, svc, "North Plot")

	at := fixedNow
	_, err := svc.Edit(ctx, field.ID, model.FieldPatch{CurrentHealth: ptr(healthy(0.8)), LastAnalysis: &at}, testActor)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"no changes supplied"}, verr.Reasons)

	var decoded model.FieldPatch
	require.NoError(t, json.Unmarshal([]byte(`{"currentHealth":{"ndvi":0.8,"status":"healthy"},"lastAnalysis":"2024-07-01T00:00:00Z"}`), &decoded))
	assert.True(t, decoded.IsEmpty())

	stored, err := svc.Get(ctx, field.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CurrentHealth)
	assert.Nil(t, stored.LastAnalysis)
}

func TestEdit_NewBoundaryRemeasuresArea(t *testing.T) {
	svc := newTestFieldService(t)
	ctx := context.Background()
	field := registerField(t, svc, "North Plot")

	ring := geometry.Ring{
		{Lat: 28.3687, Lng: 77.5409},
		{Lat: 28.3687, Lng: 77.5429},
		{Lat: 28.3707, Lng: 77.5429},
		{Lat: 28.3707, Lng: 77.5409},
	}
	updated, err := svc.Edit(ctx, field.ID, model.FieldPatch{Coordinates: ring, Area: ptr(99.0)}, testActor)
	require.NoError(t, err)

	want, err := geometry.RingHectares(ring)
	require.NoError(t, err)
	assert.InDelta(t, want, updated.Area, 1e-9)
	assert.Greater(t, updated.Area, field.Area)
	assert.True(t, updated.Coordinates.IsClosed())
}

func TestAddEvent(t *testing.T) {
	svc := newTestFieldService(t)
	ctx := context.Background()
	field := registerField(t, svc, "North Plot")

	at := time.Date(2024, 7, 2, 6, 0, 0, 0, time.UTC)
	event, err := svc.AddEvent(ctx, field.ID, EventInput{
		Type:        model.EventFertilizer,
		Description: " Applied urea ",
		Timestamp:   &at,
		Metadata:    map[string]any{"kg": 25.0},
	}, testActor)
	require.NoError(t, err)
	assert.Equal(t, "Applied urea", event.Description)
	assert.Equal(t, testActor.UserName, event.UserName)

	events, err := svc.Timeline(ctx, field.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event.ID, events[0].ID, "newest first")
	assert.Equal(t, model.EventCreated, events[1].Type)

	_, err = svc.AddEvent(ctx, field.ID, EventInput{Type: model.EventCreated, Description: "x"}, testActor)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.AddEvent(ctx, field.ID, EventInput{Type: model.EventNote}, testActor)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.AddEvent(ctx, "missing", EventInput{Type: model.EventNote, Description: "x"}, testActor)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTimeline_StableForEqualTimestamps(t *testing.T) {
	svc := newTestFieldService(t)
	ctx := context.Background()
	field := registerField(t, svc, "North Plot")

	at := time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)
	var ids []string
	for _, d := range []string{"first", "second", "third"} {
		ev, err := svc.AddEvent(ctx, field.ID, EventInput{Type: model.EventNote, Description: d, Timestamp: &at}, testActor)
		require.NoError(t, err)
		ids = append(ids, ev.ID)
	}

	events, err := svc.Timeline(ctx, field.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, ids, []string{events[0].ID, events[1].ID, events[2].ID})
}

func healthy(ndvi float64) model.VegetationIndices {
	return model.VegetationIndices{NDVI: ndvi, NDMI: 0.3, Status: model.HealthHealthy}
}

func TestRecordSnapshot(t *testing.T) {
	svc := newTestFieldService(t)
	ctx := context.Background()
	field := registerField(t, svc, "North Plot")

	quadrants := model.DefaultQuadrants()
	for i := range quadrants {
		quadrants[i].NDVI = 0.6
		quadrants[i].Status = model.HealthHealthy
	}

	later := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.RecordSnapshot(ctx, field.ID, SnapshotInput{Timestamp: &later, Health: healthy(0.7), Quadrants: quadrants, Confidence: 0.9, CloudCover: 5}, testActor)
	require.NoError(t, err)
	_, err = svc.RecordSnapshot(ctx, field.ID, SnapshotInput{Timestamp: &earlier, Health: healthy(0.5), Confidence: 0.8}, testActor)
	require.NoError(t, err)

	history, err := svc.Snapshots(ctx, field.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, earlier, history[0].Timestamp)
	assert.Equal(t, later, history[1].Timestamp)

	latest, err := svc.LatestSnapshot(ctx, field.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, latest.Health.NDVI, 1e-9)

	stored, err := svc.Get(ctx, field.ID)
	require.NoError(t, err)
	assert.Equal(t, quadrants, stored.Quadrants)
	require.NotNil(t, stored.CurrentHealth)
	require.NotNil(t, stored.LastAnalysis)
	assert.Equal(t, earlier, *stored.LastAnalysis, "mirrors the most recently saved snapshot")

	events, err := svc.Timeline(ctx, field.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, model.EventCreated, events[0].Type)
	assert.Equal(t, model.EventAnalysis, events[1].Type)
	assert.Equal(t, "Field analysis recorded: NDVI 0.70 (healthy)", events[1].Description)
}

func TestRecordSnapshot_Validation(t *testing.T) {
	svc := newTestFieldService(t)
	ctx := context.Background()
	field := registerField(t, svc, "North Plot")

	_, err := svc.RecordSnapshot(ctx, field.ID, SnapshotInput{
		Health:     model.VegetationIndices{NDVI: 2, Status: "great"},
		Confidence: 1.5,
		CloudCover: -1,
		Quadrants:  []model.Quadrant{{ID: "q1"}},
	}, testActor)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Reasons, 5)

	_, err = svc.RecordSnapshot(ctx, "missing", SnapshotInput{Health: healthy(0.5)}, testActor)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.LatestSnapshot(ctx, field.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_Cascades(t *testing.T) {
	svc := newTestFieldService(t)
	ctx := context.Background()
	field := registerField(t, svc, "North Plot")
	other := registerField(t, svc, "South Plot")
	_, err := svc.RecordSnapshot(ctx, field.ID, SnapshotInput{Health: healthy(0.5)}, testActor)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, field.ID))

	_, err = svc.Get(ctx, field.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	snaps, err := svc.store.GetSnapshotsForField(ctx, field.ID)
	require.NoError(t, err)
	assert.Empty(t, snaps)
	events, err := svc.store.GetEventsForField(ctx, field.ID)
	require.NoError(t, err)
	assert.Empty(t, events)

	remaining, err := svc.Timeline(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestPreferences(t *testing.T) {
	svc := newTestFieldService(t)
	ctx := context.Background()

	prefs, err := svc.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPreferences(), prefs)

	want := model.UserPreferences{Language: "hi", MeasurementUnit: model.UnitImperial, Theme: model.ThemeDark}
	_, err = svc.SavePreferences(ctx, want)
	require.NoError(t, err)
	prefs, err = svc.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, prefs)

	_, err = svc.SavePreferences(ctx, model.UserPreferences{Language: "en", MeasurementUnit: "furlongs", Theme: model.ThemeAuto})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	source := newTestFieldService(t)
	field := registerField(t, source, "North Plot")

	data, err := source.Export(ctx)
	require.NoError(t, err)

	target := newTestFieldService(t)
	require.NoError(t, target.Import(ctx, data))
	got, err := target.Get(ctx, field.ID)
	require.NoError(t, err)
	assert.Equal(t, field.Name, got.Name)

	assert.ErrorIs(t, target.Import(ctx, []byte(`{"fields": 7}`)), ErrInvalidInput)
	assert.ErrorIs(t, target.Import(ctx, []byte(`not json`)), ErrInvalidInput)
}

func TestGrowthOf(t *testing.T) {
	field := model.Field{SowingDate: "2024-03-01", ExpectedHarvestDate: "2024-07-09"}

	g := GrowthOf(field, time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, 111, g.Days)
	assert.Equal(t, 130, g.TotalDays)
	assert.InDelta(t, 85.38, g.Percentage, 0.01)
	assert.True(t, g.CanPredictYield)
	assert.Equal(t, 111, g.PredictionDay)

	g = GrowthOf(field, time.Date(2024, 6, 19, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 110, g.Days)
	assert.False(t, g.CanPredictYield)

	g = GrowthOf(model.Field{SowingDate: "2024-03-01"}, fixedNow)
	assert.Equal(t, 122, g.Days)
	assert.Zero(t, g.TotalDays)
	assert.False(t, g.CanPredictYield)

	assert.Equal(t, Growth{}, GrowthOf(model.Field{}, fixedNow))
}

func TestDetails(t *testing.T) {
	svc := newTestFieldService(t)
	ctx := context.Background()
	field := registerField(t, svc, "North Plot")
	_, err := svc.RecordSnapshot(ctx, field.ID, SnapshotInput{Health: healthy(0.65)}, testActor)
	require.NoError(t, err)

	details, err := svc.Details(ctx, field.ID)
	require.NoError(t, err)
	assert.Equal(t, field.ID, details.Field.ID)
	require.NotNil(t, details.LatestSnapshot)
	assert.Len(t, details.Snapshots, 1)
	assert.Len(t, details.Timeline, 2)
	assert.Equal(t, 122, details.Growth.Days)
	assert.True(t, details.Growth.CanPredictYield)

	raw, err := json.Marshal(details)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"canPredictYield":true`)
	assert.Contains(t, string(raw), `"geometry"`)

	_, err = svc.Details(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
