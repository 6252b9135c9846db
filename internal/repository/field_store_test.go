package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"field-service/internal/config"
	"field-service/internal/db"
	"field-service/internal/geometry"
	"field-service/internal/model"
)

const testPrefix = "soilsaathi_"

var fixedNow = time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*FieldStore, *DocumentRepository) {
	t.Helper()
	cfg := &config.Config{DB: config.DBConfig{Driver: config.DriverSQLite, DSN: ":memory:"}}
	database, err := db.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	docs := NewDocumentRepository(database)
	store := NewFieldStore(docs, testPrefix, zerolog.Nop())
	store.now = func() time.Time { return fixedNow }
	return store, docs
}

func sampleField(id, name string) model.Field {
	return model.Field{
		ID:       id,
		Name:     name,
		CropType: "Rice",
		Variety:  "Not specified",
		Area:     1.25,
		Coordinates: geometry.Ring{
			{Lat: 28.3687, Lng: 77.5409},
			{Lat: 28.3687, Lng: 77.5419},
			{Lat: 28.3697, Lng: 77.5419},
		},
		Quadrants: model.DefaultQuadrants(),
		CreatedAt: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func snapshotAt(id string, at time.Time, ndvi float64) model.AnalysisSnapshot {
	return model.AnalysisSnapshot{
		ID:        id,
		Timestamp: at,
		Health:    model.VegetationIndices{NDVI: ndvi, Status: model.HealthHealthy},
		Quadrants: model.DefaultQuadrants(),
	}
}

func TestDocumentRepository_PutGetDelete(t *testing.T) {
	_, docs := newTestStore(t)
	ctx := context.Background()

	_, ok, err := docs.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, docs.Put(ctx, "k", []byte(`{"a":1}`)))
	require.NoError(t, docs.Put(ctx, "k", []byte(`{"a":2}`)))

	raw, ok, err := docs.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":2}`, string(raw))

	require.NoError(t, docs.Delete(ctx, "k"))
	_, ok, err = docs.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFieldStore_SaveAndGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	field := sampleField("f1", "North Plot")
	require.NoError(t, store.SaveField(ctx, field))

	got, err := store.GetFieldByID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, field, *got)

	field.Name = "Renamed"
	require.NoError(t, store.SaveField(ctx, field))

	all, err := store.GetAllFields(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "save with an existing id replaces")
	assert.Equal(t, "Renamed", all[0].Name)

	_, err = store.GetFieldByID(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFieldStore_EmptyStore(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	fields, err := store.GetAllFields(ctx)
	require.NoError(t, err)
	assert.NotNil(t, fields)
	assert.Empty(t, fields)

	latest, err := store.GetLatestSnapshot(ctx, "f1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	events, err := store.GetEventsForField(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFieldStore_DeleteFieldCascades(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveField(ctx, sampleField("f1", "A")))
	require.NoError(t, store.SaveField(ctx, sampleField("f2", "B")))
	require.NoError(t, store.SaveSnapshot(ctx, "f1", snapshotAt("s1", fixedNow, 0.6)))
	require.NoError(t, store.SaveSnapshot(ctx, "f2", snapshotAt("s2", fixedNow, 0.5)))
	require.NoError(t, store.SaveEvent(ctx, "f1", model.FieldEvent{ID: "e1", Type: model.EventNote}))
	require.NoError(t, store.SaveEvent(ctx, "f2", model.FieldEvent{ID: "e2", Type: model.EventNote}))

	require.NoError(t, store.DeleteField(ctx, "f1"))

	_, err := store.GetFieldByID(ctx, "f1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	snaps, err := store.GetSnapshotsForField(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, snaps)
	events, err := store.GetEventsForField(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, events)

	// the other field is untouched
	snaps, err = store.GetSnapshotsForField(ctx, "f2")
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
	events, err = store.GetEventsForField(ctx, "f2")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestFieldStore_SaveSnapshotDenormalizesHealth(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveField(ctx, sampleField("f1", "A")))

	older := snapshotAt("s1", time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), 0.4)
	newer := snapshotAt("s2", time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC), 0.7)
	require.NoError(t, store.SaveSnapshot(ctx, "f1", newer))
	require.NoError(t, store.SaveSnapshot(ctx, "f1", older))

	field, err := store.GetFieldByID(ctx, "f1")
	require.NoError(t, err)
	require.NotNil(t, field.CurrentHealth)
	assert.Equal(t, older.Health, *field.CurrentHealth, "the cache follows the last write")
	require.NotNil(t, field.LastAnalysis)
	assert.True(t, older.Timestamp.Equal(*field.LastAnalysis))
	assert.Equal(t, fixedNow, field.UpdatedAt)

	latest, err := store.GetLatestSnapshot(ctx, "f1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "s2", latest.ID)
}

func TestFieldStore_LatestSnapshotTieKeepsFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, "f1", snapshotAt("first", fixedNow, 0.3)))
	require.NoError(t, store.SaveSnapshot(ctx, "f1", snapshotAt("second", fixedNow, 0.4)))

	latest, err := store.GetLatestSnapshot(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "first", latest.ID)
}

func TestFieldStore_UpdateFieldMissingIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveField(ctx, sampleField("f1", "A")))

	name := "ghost"
	require.NoError(t, store.UpdateField(ctx, "nope", model.FieldPatch{Name: &name}))

	all, err := store.GetAllFields(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, "A", all[0].Name)
}

func TestFieldStore_UpdateFieldMergesAndStamps(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveField(ctx, sampleField("f1", "A")))

	notes := "drip lines fixed"
	require.NoError(t, store.UpdateField(ctx, "f1", model.FieldPatch{Notes: &notes}))

	field, err := store.GetFieldByID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, notes, field.Notes)
	assert.Equal(t, "A", field.Name)
	assert.Equal(t, fixedNow, field.UpdatedAt)
}

func TestFieldStore_Preferences(t *testing.T) {
	store, docs := newTestStore(t)
	ctx := context.Background()

	prefs, err := store.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPreferences(), prefs)

	custom := model.UserPreferences{Language: "hi", MeasurementUnit: model.UnitImperial, Theme: model.ThemeDark}
	require.NoError(t, store.SavePreferences(ctx, custom))
	prefs, err = store.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, custom, prefs)

	require.NoError(t, docs.Put(ctx, testPrefix+preferencesKey, []byte(`"not an object"`)))
	prefs, err = store.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPreferences(), prefs)
}

func TestFieldStore_CorruptDocumentReadsAsEmpty(t *testing.T) {
	store, docs := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, docs.Put(ctx, testPrefix+fieldsKey, []byte(`{"broken": true}`)))

	fields, err := store.GetAllFields(ctx)
	require.NoError(t, err)
	assert.Empty(t, fields)

	_, err = store.GetFieldByID(ctx, "f1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFieldStore_CreateFieldWritesFieldAndEvent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	field := sampleField("f1", "A")
	event := model.FieldEvent{ID: "e1", Type: model.EventCreated, Timestamp: fixedNow, Description: "created"}
	require.NoError(t, store.CreateField(ctx, field, event))

	_, err := store.GetFieldByID(ctx, "f1")
	require.NoError(t, err)
	events, err := store.GetEventsForField(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, []model.FieldEvent{event}, events)
}

func TestFieldStore_ExportImportRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveField(ctx, sampleField("f1", "A")))
	require.NoError(t, store.SaveSnapshot(ctx, "f1", snapshotAt("s1", fixedNow, 0.6)))
	require.NoError(t, store.SaveEvent(ctx, "f1", model.FieldEvent{ID: "e1", Type: model.EventNote, Timestamp: fixedNow}))

	data, err := store.ExportAllData(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"fields\"", "export is indented with two spaces")

	var doc ExportDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, fixedNow, doc.ExportedAt)
	assert.Len(t, doc.Fields, 1)
	assert.Equal(t, model.DefaultPreferences(), doc.Preferences)

	before, err := store.GetAllFields(ctx)
	require.NoError(t, err)

	require.NoError(t, store.ClearAllData(ctx))
	cleared, err := store.GetAllFields(ctx)
	require.NoError(t, err)
	assert.Empty(t, cleared)

	require.True(t, store.ImportAllData(ctx, data))
	after, err := store.GetAllFields(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	snaps, err := store.GetSnapshotsForField(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestFieldStore_ImportOnlyFieldsLeavesOtherPartitions(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveField(ctx, sampleField("f1", "A")))
	require.NoError(t, store.SaveSnapshot(ctx, "f1", snapshotAt("s1", fixedNow, 0.6)))
	require.NoError(t, store.SaveEvent(ctx, "f1", model.FieldEvent{ID: "e1", Type: model.EventNote, Timestamp: fixedNow}))
	prefs := model.UserPreferences{Language: "hi", MeasurementUnit: model.UnitMetric, Theme: model.ThemeLight}
	require.NoError(t, store.SavePreferences(ctx, prefs))

	snapsBefore, err := store.GetAllSnapshots(ctx)
	require.NoError(t, err)
	eventsBefore, err := store.GetAllEvents(ctx)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]any{"fields": []model.Field{sampleField("f9", "Imported")}})
	require.NoError(t, err)
	require.True(t, store.ImportAllData(ctx, payload))

	fields, err := store.GetAllFields(ctx)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "f9", fields[0].ID)

	snapsAfter, err := store.GetAllSnapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapsBefore, snapsAfter)
	eventsAfter, err := store.GetAllEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, eventsBefore, eventsAfter)
	gotPrefs, err := store.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, prefs, gotPrefs)
}

func TestFieldStore_ImportRejectsBadPayloadWithoutWriting(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveField(ctx, sampleField("f1", "A")))

	assert.False(t, store.ImportAllData(ctx, []byte(`not json`)))
	assert.False(t, store.ImportAllData(ctx, []byte(`[1,2]`)))
	// fields decode fine but events do not, so nothing is written
	assert.False(t, store.ImportAllData(ctx, []byte(`{"fields": [], "events": "oops"}`)))

	fields, err := store.GetAllFields(ctx)
	require.NoError(t, err)
	assert.Len(t, fields, 1)

	// a null partition counts as absent
	assert.True(t, store.ImportAllData(ctx, []byte(`{"fields": null}`)))
	fields, err = store.GetAllFields(ctx)
	require.NoError(t, err)
	assert.Len(t, fields, 1)
}

func TestFieldStore_GenerateIDUnique(t *testing.T) {
	store, _ := newTestStore(t)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := store.GenerateID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
