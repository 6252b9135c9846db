package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"field-service/internal/narration"
)

func TestNarrate(t *testing.T) {
	fields := newTestFieldService(t)
	reports := NewReportService(fields.store, zerolog.Nop())
	ctx := context.Background()
	field := registerField(t, fields, "North Plot")

	u, err := reports.Narrate(ctx, field.ID, narration.Options{Length: narration.Short, Language: "hi", Volume: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "hi-IN", u.Lang)
	assert.Equal(t, 0.5, u.Volume)
	assert.Contains(t, u.Text, "Field report for North Plot.")

	_, err = reports.Narrate(ctx, field.ID, narration.Options{Length: narration.Short, Language: "fr"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = reports.Narrate(ctx, "missing", narration.DefaultOptions())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkbook(t *testing.T) {
	fields := newTestFieldService(t)
	reports := NewReportService(fields.store, zerolog.Nop())
	ctx := context.Background()
	field := registerField(t, fields, "North Plot")
	_, err := fields.RecordSnapshot(ctx, field.ID, SnapshotInput{Health: healthy(0.62), Confidence: 0.9, SatelliteSource: "Sentinel-2"}, testActor)
	require.NoError(t, err)

	data, name, err := reports.Workbook(ctx, field.ID)
	require.NoError(t, err)
	assert.Equal(t, "field-"+field.ID+".xlsx", name)

	book, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer book.Close()

	assert.Equal(t, []string{"Field", "Quadrants", "Snapshots", "Timeline"}, book.GetSheetList())

	v, err := book.GetCellValue("Field", "B3")
	require.NoError(t, err)
	assert.Equal(t, "North Plot", v)

	quadrants, err := book.GetRows("Quadrants")
	require.NoError(t, err)
	assert.Len(t, quadrants, 5)
	assert.Equal(t, []string{"q1", "North-West", "0", "monitor"}, quadrants[1])

	snapshots, err := book.GetRows("Snapshots")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "0.62", snapshots[1][1])
	assert.Equal(t, "Sentinel-2", snapshots[1][7])

	timeline, err := book.GetRows("Timeline")
	require.NoError(t, err)
	assert.Len(t, timeline, 3)

	_, _, err = reports.Workbook(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
