package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"field-service/internal/capture"
	"field-service/internal/config"
	"field-service/internal/db"
	"field-service/internal/geometry"
	"field-service/internal/model"
	"field-service/internal/repository"
)

var (
	fixedNow  = time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
	testActor = model.Actor{UserID: "farmer-1", UserName: "Asha"}
)

func newTestStore(t *testing.T) *repository.FieldStore {
	t.Helper()
	cfg := &config.Config{DB: config.DBConfig{Driver: config.DriverSQLite, DSN: ":memory:"}}
	database, err := db.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewFieldStore(repository.NewDocumentRepository(database), "soilsaathi_", zerolog.Nop())
}

func newTestFieldService(t *testing.T) *FieldService {
	t.Helper()
	svc := NewFieldService(newTestStore(t), time.UTC, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func testBoundary(t *testing.T) capture.Result {
	t.Helper()
	set, err := capture.NewPointSet(capture.MethodPointPin,
		geometry.Point{Lat: 28.3687, Lng: 77.5409},
		geometry.Point{Lat: 28.3687, Lng: 77.5419},
		geometry.Point{Lat: 28.3697, Lng: 77.5419},
		geometry.Point{Lat: 28.3697, Lng: 77.5409},
	)
	require.NoError(t, err)
	res, err := set.Complete()
	require.NoError(t, err)
	return res
}

func testForm(name string) FieldForm {
	return FieldForm{
		Name:                name,
		CropType:            "rice",
		SowingDate:          "2024-03-01",
		ExpectedHarvestDate: "2024-07-10",
		IrrigationMethod:    "Drip",
		WateringFrequency:   "Every 3 days",
	}
}

func registerField(t *testing.T, svc *FieldService, name string) *model.Field {
	t.Helper()
	field, err := svc.Register(context.Background(), RegisterInput{Boundary: testBoundary(t), Form: testForm(name)}, testActor)
	require.NoError(t, err)
	return field
}
