package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"field-service/internal/model"
)

const (
	fieldsKey      = "fields"
	snapshotsKey   = "snapshots"
	eventsKey      = "events"
	preferencesKey = "preferences"
)

// FieldStore keeps fields, snapshots, events and preferences as four JSON
// documents. Every write rewrites the whole document it touches.
type FieldStore struct {
	docs   *DocumentRepository
	prefix string
	log    zerolog.Logger
	now    func() time.Time
}

func NewFieldStore(docs *DocumentRepository, prefix string, log zerolog.Logger) *FieldStore {
	return &FieldStore{
		docs:   docs,
		prefix: prefix,
		log:    log.With().Str("component", "field_store").Logger(),
		now:    time.Now,
	}
}

// ExportDocument is the full store as written by ExportAllData.
type ExportDocument struct {
	Fields      []model.Field                       `json:"fields"`
	Snapshots   map[string][]model.AnalysisSnapshot `json:"snapshots"`
	Events      map[string][]model.FieldEvent       `json:"events"`
	Preferences model.UserPreferences               `json:"preferences"`
	ExportedAt  time.Time                           `json:"exportedAt"`
}

// Transaction runs fn against a store whose reads and writes share one
// database transaction. fn must only use the store it is given.
func (s *FieldStore) Transaction(ctx context.Context, fn func(tx *FieldStore) error) error {
	return s.docs.Transaction(ctx, func(docs *DocumentRepository) error {
		return fn(&FieldStore{docs: docs, prefix: s.prefix, log: s.log, now: s.now})
	})
}

func (s *FieldStore) key(name string) string {
	return s.prefix + name
}

// readDocument decodes the document under name into T. A missing or corrupt
// document yields the zero value; corruption is logged.
func readDocument[T any](ctx context.Context, s *FieldStore, name string) (T, bool, error) {
	var out T
	raw, ok, err := s.docs.Get(ctx, s.key(name))
	if err != nil {
		return out, false, fmt.Errorf("read %s: %w", name, err)
	}
	if !ok {
		return out, false, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		s.log.Error().Err(err).Str("document", name).Msg("corrupt document, treating as empty")
		var zero T
		return zero, false, nil
	}
	return out, true, nil
}

func (s *FieldStore) writeDocument(ctx context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := s.docs.Put(ctx, s.key(name), raw); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Fields

// SaveField replaces the field with the same id or appends it.
func (s *FieldStore) SaveField(ctx context.Context, field model.Field) error {
	fields, err := s.GetAllFields(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range fields {
		if fields[i].ID == field.ID {
			fields[i] = field
			replaced = true
			break
		}
	}
	if !replaced {
		fields = append(fields, field)
	}

	return s.writeDocument(ctx, fieldsKey, fields)
}

func (s *FieldStore) GetAllFields(ctx context.Context) ([]model.Field, error) {
	fields, _, err := readDocument[[]model.Field](ctx, s, fieldsKey)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []model.Field{}
	}
	return fields, nil
}

// GetFieldByID returns gorm.ErrRecordNotFound when no field has the id.
func (s *FieldStore) GetFieldByID(ctx context.Context, id string) (*model.Field, error) {
	fields, err := s.GetAllFields(ctx)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		if fields[i].ID == id {
			return &fields[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// DeleteField removes the field together with its snapshots and events.
func (s *FieldStore) DeleteField(ctx context.Context, id string) error {
	return s.Transaction(ctx, func(tx *FieldStore) error {
		fields, err := tx.GetAllFields(ctx)
		if err != nil {
			return err
		}
		kept := fields[:0]
		for _, f := range fields {
			if f.ID != id {
				kept = append(kept, f)
			}
		}
		if err := tx.writeDocument(ctx, fieldsKey, kept); err != nil {
			return err
		}

		snapshots, err := tx.GetAllSnapshots(ctx)
		if err != nil {
			return err
		}
		delete(snapshots, id)
		if err := tx.writeDocument(ctx, snapshotsKey, snapshots); err != nil {
			return err
		}

		events, err := tx.GetAllEvents(ctx)
		if err != nil {
			return err
		}
		delete(events, id)
		return tx.writeDocument(ctx, eventsKey, events)
	})
}

// UpdateField merges patch onto the stored field and stamps UpdatedAt. It
// does nothing when the field does not exist.
func (s *FieldStore) UpdateField(ctx context.Context, id string, patch model.FieldPatch) error {
	field, err := s.GetFieldByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	patch.Apply(field)
	field.UpdatedAt = s.now().UTC()
	return s.SaveField(ctx, *field)
}

// Snapshots

// SaveSnapshot appends the snapshot and mirrors its health and timestamp onto
// the owning field.
func (s *FieldStore) SaveSnapshot(ctx context.Context, fieldID string, snapshot model.AnalysisSnapshot) error {
	return s.Transaction(ctx, func(tx *FieldStore) error {
		snapshots, err := tx.GetAllSnapshots(ctx)
		if err != nil {
			return err
		}
		snapshots[fieldID] = append(snapshots[fieldID], snapshot)
		if err := tx.writeDocument(ctx, snapshotsKey, snapshots); err != nil {
			return err
		}

		health := snapshot.Health
		at := snapshot.Timestamp
		return tx.UpdateField(ctx, fieldID, model.FieldPatch{
			CurrentHealth: &health,
			LastAnalysis:  &at,
		})
	})
}

func (s *FieldStore) GetAllSnapshots(ctx context.Context) (map[string][]model.AnalysisSnapshot, error) {
	snapshots, _, err := readDocument[map[string][]model.AnalysisSnapshot](ctx, s, snapshotsKey)
	if err != nil {
		return nil, err
	}
	if snapshots == nil {
		snapshots = map[string][]model.AnalysisSnapshot{}
	}
	return snapshots, nil
}

func (s *FieldStore) GetSnapshotsForField(ctx context.Context, fieldID string) ([]model.AnalysisSnapshot, error) {
	snapshots, err := s.GetAllSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	if list := snapshots[fieldID]; list != nil {
		return list, nil
	}
	return []model.AnalysisSnapshot{}, nil
}

// GetLatestSnapshot returns the snapshot with the greatest timestamp, or nil
// when the field has none. Ties keep the earlier entry.
func (s *FieldStore) GetLatestSnapshot(ctx context.Context, fieldID string) (*model.AnalysisSnapshot, error) {
	snapshots, err := s.GetSnapshotsForField(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}

	latest := snapshots[0]
	for _, snap := range snapshots[1:] {
		if snap.Timestamp.After(latest.Timestamp) {
			latest = snap
		}
	}
	return &latest, nil
}

// Events

func (s *FieldStore) SaveEvent(ctx context.Context, fieldID string, event model.FieldEvent) error {
	events, err := s.GetAllEvents(ctx)
	if err != nil {
		return err
	}
	events[fieldID] = append(events[fieldID], event)
	return s.writeDocument(ctx, eventsKey, events)
}

func (s *FieldStore) GetAllEvents(ctx context.Context) (map[string][]model.FieldEvent, error) {
	events, _, err := readDocument[map[string][]model.FieldEvent](ctx, s, eventsKey)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = map[string][]model.FieldEvent{}
	}
	return events, nil
}

func (s *FieldStore) GetEventsForField(ctx context.Context, fieldID string) ([]model.FieldEvent, error) {
	events, err := s.GetAllEvents(ctx)
	if err != nil {
		return nil, err
	}
	if list := events[fieldID]; list != nil {
		return list, nil
	}
	return []model.FieldEvent{}, nil
}

// Preferences

// GetPreferences falls back to the defaults when nothing valid is stored.
func (s *FieldStore) GetPreferences(ctx context.Context) (model.UserPreferences, error) {
	prefs, ok, err := readDocument[model.UserPreferences](ctx, s, preferencesKey)
	if err != nil {
		return model.UserPreferences{}, err
	}
	if !ok {
		return model.DefaultPreferences(), nil
	}
	return prefs, nil
}

func (s *FieldStore) SavePreferences(ctx context.Context, prefs model.UserPreferences) error {
	return s.writeDocument(ctx, preferencesKey, prefs)
}

// Registration

// CreateField stores a new field and its first event atomically.
func (s *FieldStore) CreateField(ctx context.Context, field model.Field, event model.FieldEvent) error {
	return s.Transaction(ctx, func(tx *FieldStore) error {
		if err := tx.SaveField(ctx, field); err != nil {
			return err
		}
		return tx.SaveEvent(ctx, field.ID, event)
	})
}

// Bulk

// ExportAllData serializes the whole store as an indented JSON document.
func (s *FieldStore) ExportAllData(ctx context.Context) ([]byte, error) {
	doc := ExportDocument{ExportedAt: s.now().UTC()}

	var err error
	if doc.Fields, err = s.GetAllFields(ctx); err != nil {
		return nil, err
	}
	if doc.Snapshots, err = s.GetAllSnapshots(ctx); err != nil {
		return nil, err
	}
	if doc.Events, err = s.GetAllEvents(ctx); err != nil {
		return nil, err
	}
	if doc.Preferences, err = s.GetPreferences(ctx); err != nil {
		return nil, err
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return out, nil
}

// ImportAllData overwrites each partition present in data and leaves the
// others untouched. Nothing is written unless every present partition
// decodes. Failures are logged and reported as false.
func (s *FieldStore) ImportAllData(ctx context.Context, data []byte) bool {
	if err := s.importAllData(ctx, data); err != nil {
		s.log.Error().Err(err).Msg("import failed")
		return false
	}
	return true
}

func (s *FieldStore) importAllData(ctx context.Context, data []byte) error {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode import: %w", err)
	}
	if payload == nil {
		return fmt.Errorf("decode import: payload is not an object")
	}

	partitions := make(map[string]any)
	if raw, ok := present(payload, fieldsKey); ok {
		var fields []model.Field
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("decode fields: %w", err)
		}
		partitions[fieldsKey] = fields
	}
	if raw, ok := present(payload, snapshotsKey); ok {
		var snapshots map[string][]model.AnalysisSnapshot
		if err := json.Unmarshal(raw, &snapshots); err != nil {
			return fmt.Errorf("decode snapshots: %w", err)
		}
		partitions[snapshotsKey] = snapshots
	}
	if raw, ok := present(payload, eventsKey); ok {
		var events map[string][]model.FieldEvent
		if err := json.Unmarshal(raw, &events); err != nil {
			return fmt.Errorf("decode events: %w", err)
		}
		partitions[eventsKey] = events
	}
	if raw, ok := present(payload, preferencesKey); ok {
		var prefs model.UserPreferences
		if err := json.Unmarshal(raw, &prefs); err != nil {
			return fmt.Errorf("decode preferences: %w", err)
		}
		partitions[preferencesKey] = prefs
	}

	return s.Transaction(ctx, func(tx *FieldStore) error {
		for name, value := range partitions {
			if err := tx.writeDocument(ctx, name, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func present(payload map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := payload[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

// ClearAllData removes all four documents.
func (s *FieldStore) ClearAllData(ctx context.Context) error {
	return s.docs.Transaction(ctx, func(tx *DocumentRepository) error {
		for _, name := range []string{fieldsKey, snapshotsKey, eventsKey, preferencesKey} {
			if err := tx.Delete(ctx, s.key(name)); err != nil {
				return fmt.Errorf("clear %s: %w", name, err)
			}
		}
		return nil
	})
}

func (s *FieldStore) GenerateID() string {
	return uuid.NewString()
}
