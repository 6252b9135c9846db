package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"field-service/internal/client"
	"field-service/internal/geometry"
	"field-service/internal/model"
)

type stubPredictor struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
	got     client.YieldRequest
	ctxErr  error
}

func (p *stubPredictor) Predict(ctx context.Context, in client.YieldRequest) (*model.YieldPrediction, error) {
	p.got = in
	p.calls.Add(1)
	if p.release != nil {
		<-p.release
	}
	p.ctxErr = ctx.Err()
	if p.err != nil {
		return nil, p.err
	}
	return &model.YieldPrediction{PredictedYield: 4.2, Confidence: 0.81}, nil
}

func newTestYieldService(t *testing.T, predictor YieldPredictor) (*YieldService, *FieldService) {
	t.Helper()
	fields := newTestFieldService(t)
	svc := NewYieldService(fields.store, predictor, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc, fields
}

func TestRequest_DescribesField(t *testing.T) {
	field := model.Field{
		Name:       "River Plot",
		CropType:   "Rice",
		Variety:    "IR-64",
		SowingDate: "2024-06-15",
		Coordinates: geometry.Ring{
			{Lat: 28.368717, Lng: 77.540933},
			{Lat: 28.368989, Lng: 77.540859},
			{Lat: 28.369041, Lng: 77.541089},
			{Lat: 28.368793, Lng: 77.541176},
			{Lat: 28.368717, Lng: 77.540933},
		},
	}

	req, err := Request(field, "")
	require.NoError(t, err)
	assert.Equal(t, client.YieldRequest{
		FieldCoordinates: "28.368885,77.541014",
		CropType:         "Rice",
		SowingDate:       "2024-06-15",
		VarietyName:      "IR-64",
		LocationName:     "River Plot",
		UseRealTimeData:  true,
	}, req)

	req, err = Request(field, " Sonipat ")
	require.NoError(t, err)
	assert.Equal(t, "Sonipat", req.LocationName)

	_, err = Request(model.Field{}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPredict_StoresAnalysisEvent(t *testing.T) {
	predictor := &stubPredictor{}
	svc, fields := newTestYieldService(t, predictor)
	ctx := context.Background()
	field := registerField(t, fields, "North Plot")

	record, err := svc.Predict(ctx, field.ID, YieldInput{}, testActor)
	require.NoError(t, err)
	assert.Equal(t, field.ID, record.FieldID)
	assert.Equal(t, fixedNow, record.Timestamp)
	assert.Equal(t, 4.2, record.Prediction.PredictedYield)
	assert.Equal(t, "North Plot", predictor.got.LocationName)

	events, err := fields.Timeline(ctx, field.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	var analysis *model.FieldEvent
	for i := range events {
		if events[i].Type == model.EventAnalysis {
			analysis = &events[i]
		}
	}
	require.NotNil(t, analysis)
	assert.Equal(t, "Yield predicted: 4.20 t/ha (81% confidence)", analysis.Description)
	assert.Equal(t, "yield_prediction", analysis.Metadata["kind"])
}

func TestPredict_Failures(t *testing.T) {
	ctx := context.Background()

	upstream := &stubPredictor{err: fmt.Errorf("%w: status 503", client.ErrUpstream)}
	svc, fields := newTestYieldService(t, upstream)
	field := registerField(t, fields, "North Plot")

	_, err := svc.Predict(ctx, field.ID, YieldInput{}, testActor)
	assert.ErrorIs(t, err, ErrUpstream)
	events, err := fields.Timeline(ctx, field.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1, "failed predictions are not recorded")
	assert.Equal(t, int32(1), upstream.calls.Load())

	misconfigured := &stubPredictor{err: errors.New("yield service URL is not configured")}
	svc, fields = newTestYieldService(t, misconfigured)
	field = registerField(t, fields, "North Plot")
	_, err = svc.Predict(ctx, field.ID, YieldInput{}, testActor)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.Predict(ctx, "missing", YieldInput{}, testActor)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPredict_CollapsesConcurrentCalls(t *testing.T) {
	predictor := &stubPredictor{release: make(chan struct{})}
	svc, fields := newTestYieldService(t, predictor)
	field := registerField(t, fields, "North Plot")

	const callers = 5
	var (
		wg      sync.WaitGroup
		records [callers]*model.YieldRecord
		errs    [callers]error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records[i], errs[i] = svc.Predict(context.Background(), field.ID, YieldInput{}, testActor)
		}(i)
	}

	require.Eventually(t, func() bool { return predictor.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// let the other callers reach the in-flight call before releasing it
	time.Sleep(100 * time.Millisecond)
	close(predictor.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, records[0].ID, records[i].ID)
	}
	assert.Equal(t, int32(1), predictor.calls.Load())
}

func TestPredict_SharedCallOutlivesFirstCaller(t *testing.T) {
	predictor := &stubPredictor{release: make(chan struct{})}
	svc, fields := newTestYieldService(t, predictor)
	field := registerField(t, fields, "North Plot")

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Predict(firstCtx, field.ID, YieldInput{}, testActor)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return predictor.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type outcome struct {
		record *model.YieldRecord
		err    error
	}
	second := make(chan outcome, 1)
	go func() {
		record, err := svc.Predict(context.Background(), field.ID, YieldInput{}, testActor)
		second <- outcome{record, err}
	}()
	time.Sleep(100 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(predictor.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 4.2, got.record.Prediction.PredictedYield)
	assert.NoError(t, predictor.ctxErr)
	assert.Equal(t, int32(1), predictor.calls.Load())
}
