package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"field-service/internal/config"
	"field-service/internal/model"
)

// ErrUpstream marks failures caused by the prediction service itself, as
// opposed to a request that could not be built.
var ErrUpstream = errors.New("yield service failure")

const maxErrorBody = 512

type YieldRequest struct {
	FieldCoordinates string `json:"field_coordinates"`
	CropType         string `json:"crop_type"`
	SowingDate       string `json:"sowing_date"`
	VarietyName      string `json:"variety_name"`
	LocationName     string `json:"location_name"`
	UseRealTimeData  bool   `json:"use_real_time_data"`
}

// yieldResponse uses pointers so missing required members can be told apart
// from zero values.
type yieldResponse struct {
	PredictedYield           *float64       `json:"predicted_yield"`
	Confidence               *float64       `json:"confidence"`
	LowerBound               *float64       `json:"lower_bound"`
	UpperBound               *float64       `json:"upper_bound"`
	VarietyCharacteristics   map[string]any `json:"variety_characteristics"`
	EnvironmentalAdjustments map[string]any `json:"environmental_adjustments"`
	DataQuality              *float64       `json:"data_quality"`
}

type YieldClient struct {
	serviceURL string
	httpClient *http.Client
}

func NewYieldClient(cfg *config.Config) *YieldClient {
	return &YieldClient{
		serviceURL: cfg.Yield.ServiceURL,
		httpClient: &http.Client{
			Timeout: cfg.Yield.Timeout,
		},
	}
}

// Predict posts the field description once. There is no retry; callers
// surface the failure and let the user try again.
func (c *YieldClient) Predict(ctx context.Context, in YieldRequest) (*model.YieldPrediction, error) {
	if c.serviceURL == "" {
		return nil, fmt.Errorf("yield service URL is not configured")
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncate(payload))
	}

	var out yieldResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrUpstream, err)
	}
	if out.PredictedYield == nil || out.Confidence == nil {
		return nil, fmt.Errorf("%w: response is missing predicted_yield or confidence", ErrUpstream)
	}

	return &model.YieldPrediction{
		PredictedYield:           *out.PredictedYield,
		Confidence:               *out.Confidence,
		LowerBound:               out.LowerBound,
		UpperBound:               out.UpperBound,
		VarietyCharacteristics:   out.VarietyCharacteristics,
		EnvironmentalAdjustments: out.EnvironmentalAdjustments,
		DataQuality:              out.DataQuality,
	}, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
