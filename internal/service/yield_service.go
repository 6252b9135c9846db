package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"field-service/internal/client"
	"field-service/internal/geometry"
	"field-service/internal/model"
	"field-service/internal/repository"
	"field-service/internal/utils"
)

type YieldPredictor interface {
	Predict(ctx context.Context, in client.YieldRequest) (*model.YieldPrediction, error)
}

// YieldInput lets the caller override what is sent for the field.
type YieldInput struct {
	LocationName string `json:"locationName"`
}

// predictionFlightTimeout bounds a shared prediction once it no longer
// follows any caller's cancellation.
const predictionFlightTimeout = 2 * time.Minute

type YieldService struct {
	store     *repository.FieldStore
	predictor YieldPredictor
	log       zerolog.Logger
	now       func() time.Time

	group singleflight.Group
}

func NewYieldService(store *repository.FieldStore, predictor YieldPredictor, log zerolog.Logger) *YieldService {
	return &YieldService{
		store:     store,
		predictor: predictor,
		log:       log.With().Str("component", "yield_service").Logger(),
		now:       time.Now,
	}
}

// Request describes field to the prediction model: its centroid as
// "lat,lng", the crop details and a location label.
func Request(field model.Field, locationName string) (client.YieldRequest, error) {
	center, ok := geometry.Centroid(field.Coordinates)
	if !ok {
		return client.YieldRequest{}, &ValidationError{Reasons: []string{"field has no boundary to locate it"}}
	}
	location := utils.NormalizeLabel(locationName)
	if location == "" {
		location = field.Name
	}
	return client.YieldRequest{
		FieldCoordinates: fmt.Sprintf("%.6f,%.6f", center.Lat, center.Lng),
		CropType:         field.CropType,
		SowingDate:       field.SowingDate,
		VarietyName:      field.Variety,
		LocationName:     location,
		UseRealTimeData:  true,
	}, nil
}

// Predict asks the model for a yield estimate. Concurrent calls for the same
// field share one upstream request. Successful predictions are kept on the
// timeline as an "analysis" event.
func (s *YieldService) Predict(ctx context.Context, fieldID string, in YieldInput, actor model.Actor) (*model.YieldRecord, error) {
	field, err := getField(ctx, s.store, fieldID)
	if err != nil {
		return nil, err
	}
	req, err := Request(*field, in.LocationName)
	if err != nil {
		return nil, err
	}

	// The shared call must not die with whichever caller started it.
	flight := s.group.DoChan(fieldID+"|"+req.LocationName, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), predictionFlightTimeout)
		defer cancel()
		return s.predict(flightCtx, fieldID, req, actor)
	})

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, ctx.Err())
		}
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.log.Debug().Str("field_id", fieldID).Msg("yield prediction shared with concurrent caller")
		}
		return res.Val.(*model.YieldRecord), nil
	}
}

func (s *YieldService) predict(ctx context.Context, fieldID string, req client.YieldRequest, actor model.Actor) (*model.YieldRecord, error) {
	prediction, err := s.predictor.Predict(ctx, req)
	if err != nil {
		s.log.Warn().Err(err).Str("field_id", fieldID).Msg("yield prediction failed")
		if errors.Is(err, client.ErrUpstream) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	now := s.now().UTC()
	record := &model.YieldRecord{
		ID:         s.store.GenerateID(),
		FieldID:    fieldID,
		Timestamp:  now,
		Prediction: *prediction,
	}
	event := model.FieldEvent{
		ID:          s.store.GenerateID(),
		Type:        model.EventAnalysis,
		Timestamp:   now,
		UserID:      actor.UserID,
		UserName:    actor.UserName,
		Description: fmt.Sprintf("Yield predicted: %.2f t/ha (%.0f%% confidence)", prediction.PredictedYield, prediction.Confidence*100),
		Metadata: map[string]any{
			"kind":       "yield_prediction",
			"prediction": record,
		},
	}
	if err := s.store.SaveEvent(ctx, fieldID, event); err != nil {
		return nil, err
	}
	return record, nil
}
