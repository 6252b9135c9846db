// Package narration builds the spoken field report. Playback happens on the
// device; this package only decides what is said and how.
package narration

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"field-service/internal/model"
)

type Length string

const (
	Short  Length = "short"
	Medium Length = "medium"
	Long   Length = "long"
)

const (
	speechRate     = 0.9
	wordsPerMinute = 150
	dateLayout     = "Jan 2, 2006"
)

var languageTags = map[string]string{
	"en": "en-US",
	"hi": "hi-IN",
}

var ErrUnsupported = eris.New("narration: unsupported report option")

type Options struct {
	Length   Length
	Language string
	Volume   float64
	Muted    bool
}

// DefaultOptions is a medium English report at full volume.
func DefaultOptions() Options {
	return Options{Length: Medium, Language: "en", Volume: 1}
}

// Utterance is everything a speech engine needs to read the report aloud.
type Utterance struct {
	Text             string  `json:"text"`
	Lang             string  `json:"lang"`
	Volume           float64 `json:"volume"`
	Rate             float64 `json:"rate"`
	Words            int     `json:"words"`
	EstimatedSeconds float64 `json:"estimatedSeconds"`
}

func Report(field model.Field, opts Options) (Utterance, error) {
	lang, ok := languageTags[opts.Language]
	if !ok {
		return Utterance{}, eris.Wrapf(ErrUnsupported, "language %q", opts.Language)
	}

	var text string
	switch opts.Length {
	case Short:
		text = shortText(field)
	case Medium, "":
		text = mediumText(field)
	case Long:
		text = longText(field)
	default:
		return Utterance{}, eris.Wrapf(ErrUnsupported, "length %q", opts.Length)
	}

	volume := clamp(opts.Volume)
	if opts.Muted {
		volume = 0
	}

	words := len(strings.Fields(text))
	return Utterance{
		Text:             text,
		Lang:             lang,
		Volume:           volume,
		Rate:             speechRate,
		Words:            words,
		EstimatedSeconds: float64(words) / wordsPerMinute * 60,
	}, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func baseText(f model.Field) string {
	return fmt.Sprintf("Field report for %s. Growing %s, variety %s. Total area: %s hectares. Sown on %s.",
		f.Name, f.CropType, f.Variety, strconv.FormatFloat(f.Area, 'f', -1, 64), formatDate(f.SowingDate))
}

func shortText(f model.Field) string {
	status, ndvi := "Unknown", "Not available"
	if h := f.CurrentHealth; h != nil {
		status = string(h.Status)
		ndvi = fixed(h.NDVI)
	}
	return fmt.Sprintf("%s Current health status: %s. NDVI reading: %s.", baseText(f), status, ndvi)
}

func mediumText(f model.Field) string {
	h := f.CurrentHealth
	status := "Unknown"
	if h != nil {
		status = string(h.Status)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s Current health status: %s. Vegetation indices: NDVI %s, NDRE %s, NDMI %s.",
		baseText(f), status,
		index(h, func(v *model.VegetationIndices) float64 { return v.NDVI }),
		index(h, func(v *model.VegetationIndices) float64 { return v.NDRE }),
		index(h, func(v *model.VegetationIndices) float64 { return v.NDMI }))
	if h != nil && h.Nitrogen != nil && *h.Nitrogen != 0 {
		fmt.Fprintf(&b, " Estimated nitrogen: %.1f percent.", *h.Nitrogen)
	}
	return b.String()
}

func longText(f model.Field) string {
	h := f.CurrentHealth

	var b strings.Builder
	b.WriteString(mediumText(f))
	fmt.Fprintf(&b, " Soil moisture index: %s. Water content: %s. Organic carbon: %s.",
		index(h, func(v *model.VegetationIndices) float64 { return v.RSM }),
		index(h, func(v *model.VegetationIndices) float64 { return v.NDWI }),
		index(h, func(v *model.VegetationIndices) float64 { return v.SOCVis }))
	fmt.Fprintf(&b, " Field is divided into %d quadrants for detailed monitoring.", len(f.Quadrants))
	for _, q := range f.Quadrants {
		fmt.Fprintf(&b, " %s quadrant shows %s status with NDVI of %s.", q.Name, q.Status, fixed(q.NDVI))
	}

	last := "unknown date"
	if f.LastAnalysis != nil {
		last = f.LastAnalysis.Format(dateLayout)
	}
	fmt.Fprintf(&b, " Last analysis was performed on %s. Irrigation method: %s. Watering frequency: %s.",
		last, f.IrrigationMethod, f.WateringFrequency)
	return b.String()
}

func index(h *model.VegetationIndices, pick func(*model.VegetationIndices) float64) string {
	if h == nil {
		return "N/A"
	}
	return fixed(pick(h))
}

func fixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatDate renders a YYYY-MM-DD date for speech and passes anything else
// through unchanged.
func formatDate(value string) string {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return value
	}
	return t.Format(dateLayout)
}
