package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"field-service/internal/narration"
	"field-service/internal/repository"
)

const (
	sheetField     = "Field"
	sheetQuadrants = "Quadrants"
	sheetSnapshots = "Snapshots"
	sheetTimeline  = "Timeline"
)

type ReportService struct {
	store *repository.FieldStore
	log   zerolog.Logger
}

func NewReportService(store *repository.FieldStore, log zerolog.Logger) *ReportService {
	return &ReportService{
		store: store,
		log:   log.With().Str("component", "report_service").Logger(),
	}
}

// Narrate builds the spoken report for a field.
func (s *ReportService) Narrate(ctx context.Context, fieldID string, opts narration.Options) (*narration.Utterance, error) {
	field, err := getField(ctx, s.store, fieldID)
	if err != nil {
		return nil, err
	}
	utterance, err := narration.Report(*field, opts)
	if err != nil {
		if errors.Is(err, narration.ErrUnsupported) {
			return nil, &ValidationError{Reasons: []string{err.Error()}}
		}
		return nil, err
	}
	return &utterance, nil
}

// Workbook renders a field with its quadrants, analysis history and timeline
// as an xlsx document.
func (s *ReportService) Workbook(ctx context.Context, fieldID string) ([]byte, string, error) {
	field, err := getField(ctx, s.store, fieldID)
	if err != nil {
		return nil, "", err
	}
	snapshots, err := history(ctx, s.store, fieldID)
	if err != nil {
		return nil, "", err
	}
	events, err := timeline(ctx, s.store, fieldID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Error().Err(err).Msg("failed to close workbook")
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetField); err != nil {
		return nil, "", fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetQuadrants, sheetSnapshots, sheetTimeline} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, "", fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	var health any
	if field.CurrentHealth != nil {
		health = string(field.CurrentHealth.Status)
	}
	var lastAnalysis any
	if field.LastAnalysis != nil {
		lastAnalysis = field.LastAnalysis.Format(time.RFC3339)
	}
	fieldRows := [][]any{
		{"Attribute", "Value"},
		{"ID", field.ID},
		{"Name", field.Name},
		{"Crop", field.CropType},
		{"Variety", field.Variety},
		{"Area (ha)", field.Area},
		{"Sowing date", field.SowingDate},
		{"Expected harvest date", field.ExpectedHarvestDate},
		{"Irrigation method", field.IrrigationMethod},
		{"Watering frequency", field.WateringFrequency},
		{"Soil type", field.SoilType},
		{"Mapping method", field.MappingMethod},
		{"Boundary points", field.Coordinates.Vertices()},
		{"Health", health},
		{"Last analysis", lastAnalysis},
		{"Edits", field.EditCount},
		{"Created", field.CreatedAt.Format(time.RFC3339)},
	}

	quadrantRows := [][]any{{"ID", "Name", "NDVI", "Status"}}
	for _, q := range field.Quadrants {
		quadrantRows = append(quadrantRows, []any{q.ID, q.Name, q.NDVI, string(q.Status)})
	}

	snapshotRows := [][]any{{"Timestamp", "NDVI", "NDMI", "NDRE", "Status", "Cloud cover", "Confidence", "Source", "Model"}}
	for _, snap := range snapshots {
		snapshotRows = append(snapshotRows, []any{
			snap.Timestamp.Format(time.RFC3339),
			snap.Health.NDVI,
			snap.Health.NDMI,
			snap.Health.NDRE,
			string(snap.Health.Status),
			snap.CloudCover,
			snap.Confidence,
			snap.SatelliteSource,
			snap.ModelVersion,
		})
	}

	timelineRows := [][]any{{"Timestamp", "Type", "User", "Description"}}
	for _, ev := range events {
		timelineRows = append(timelineRows, []any{ev.Timestamp.Format(time.RFC3339), string(ev.Type), ev.UserName, ev.Description})
	}

	sheets := []struct {
		name string
		rows [][]any
	}{
		{sheetField, fieldRows},
		{sheetQuadrants, quadrantRows},
		{sheetSnapshots, snapshotRows},
		{sheetTimeline, timelineRows},
	}
	for _, sheet := range sheets {
		if err := writeRows(f, sheet.name, sheet.rows); err != nil {
			return nil, "", err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("render workbook: %w", err)
	}
	return buf.Bytes(), fmt.Sprintf("field-%s.xlsx", field.ID), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
