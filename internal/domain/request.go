package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// resultNamespace scopes the name-based UUIDs of anomaly results.
var resultNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:temperature-anomaly-etl:result"))

// Resolution is the temporal resolution of an analysis output.
type Resolution string

const (
	Monthly  Resolution = "monthly"
	Annual   Resolution = "annual"
	Seasonal Resolution = "seasonal"
)

// OutputKind selects between a regional time series and a gridded field.
type OutputKind string

const (
	KindSeries OutputKind = "series"
	KindField  OutputKind = "field"
)

// SourceSpec names one dataset and the variables to read from it.
type SourceSpec struct {
	Name     string  `json:"name"`
	Variable string  `json:"variable"`
	Mask     string  `json:"mask,omitempty"`   // land/sea mask or weight variable in the same dataset
	Offset   float64 `json:"offset,omitempty"` // added to every value, e.g. -273.15 for Kelvin
}

// DifferenceSpec asks for the anomalies of one source minus those of another.
type DifferenceSpec struct {
	Minuend    string `json:"minuend"`
	Subtrahend string `json:"subtrahend"`
}

// AnalysisRequest describes one anomaly computation.
type AnalysisRequest struct {
	ID         string       `json:"id"`
	Region     string       `json:"region"`
	Resolution Resolution   `json:"resolution"`
	Kind       OutputKind   `json:"kind"`
	Smoothing  int          `json:"smoothing,omitempty"` // centered running mean window in months, series only
	Sources    []SourceSpec `json:"sources"`

	Difference         *DifferenceSpec `json:"difference,omitempty"`
	PreindustrialLevel bool            `json:"preindustrial_level,omitempty"` // series only
	DailyQuantiles     []float64       `json:"daily_quantiles,omitempty"`     // series only, daily sources
}

// RawRequest is an unparsed message from the request topic.
type RawRequest struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ParseRequest decodes and validates a raw request, applying defaults for
// resolution and kind.
func ParseRequest(raw RawRequest) (AnalysisRequest, error) {
	var req AnalysisRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return AnalysisRequest{}, fmt.Errorf("parse analysis request: %w", err)
	}
	if req.ID == "" {
		req.ID = string(raw.Key)
	}
	if req.Resolution == "" {
		req.Resolution = Monthly
	}
	if req.Kind == "" {
		req.Kind = KindSeries
	}
	if err := req.Validate(); err != nil {
		return AnalysisRequest{}, err
	}
	return req, nil
}

// Validate checks the request for structural problems.
func (r AnalysisRequest) Validate() error {
	var problems []string
	if r.ID == "" {
		problems = append(problems, "missing id")
	}
	if r.Region == "" {
		problems = append(problems, "missing region")
	}
	switch r.Resolution {
	case Monthly, Annual, Seasonal:
	default:
		problems = append(problems, fmt.Sprintf("unknown resolution %q", r.Resolution))
	}
	switch r.Kind {
	case KindSeries, KindField:
	default:
		problems = append(problems, fmt.Sprintf("unknown kind %q", r.Kind))
	}
	if r.Smoothing < 0 {
		problems = append(problems, "negative smoothing")
	}
	if len(r.Sources) == 0 {
		problems = append(problems, "no sources")
	}
	seen := make(map[string]bool, len(r.Sources))
	for _, s := range r.Sources {
		if s.Name == "" || s.Variable == "" {
			problems = append(problems, "source needs name and variable")
			continue
		}
		for _, name := range []string{s.Name, s.Variable, s.Mask} {
			if name != "" && !ValidName(name) {
				problems = append(problems, fmt.Sprintf("source %q: invalid name %q", s.Name, name))
			}
		}
		if seen[s.Name] {
			problems = append(problems, fmt.Sprintf("source %q listed twice", s.Name))
		}
		seen[s.Name] = true
	}
	if d := r.Difference; d != nil {
		if !seen[d.Minuend] || !seen[d.Subtrahend] {
			problems = append(problems, fmt.Sprintf("difference %q - %q names an unlisted source", d.Minuend, d.Subtrahend))
		} else if d.Minuend == d.Subtrahend {
			problems = append(problems, "difference of a source with itself")
		}
	}
	if r.Kind == KindField && (r.PreindustrialLevel || len(r.DailyQuantiles) > 0) {
		problems = append(problems, "pre-industrial level and daily quantiles need kind series")
	}
	for _, q := range r.DailyQuantiles {
		if q < 0 || q > 1 {
			problems = append(problems, fmt.Sprintf("quantile %g outside [0, 1]", q))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(problems, "; "), ErrInvalidRequest)
	}
	return nil
}

// ValidName reports whether s can name a dataset or a variable: it must not
// be a relative path element or contain a path separator.
func ValidName(s string) bool {
	if s == "" || s == "." || strings.Contains(s, "..") {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}

// AnomalyResult is the output handed to the renderer. Series and Fields are
// keyed by source name.
type AnomalyResult struct {
	ID              string            `json:"id"`
	RequestID       string            `json:"request_id"`
	Region          Region            `json:"region"`
	Resolution      Resolution        `json:"resolution"`
	Kind            OutputKind        `json:"kind"`
	ReferencePeriod ReferencePeriod   `json:"reference_period"`
	Anomalies       map[string]*Field `json:"anomalies"`
	Envelopes       map[string]*Field `json:"envelopes,omitempty"`
	Baselines       map[string]*Field `json:"baselines,omitempty"` // day-weighted reference-period mean of the regional series
	Difference      *Field            `json:"difference,omitempty"`
	DailyQuantiles  map[string]*Field `json:"daily_quantiles,omitempty"`
	// PreindustrialLevel is the mean 1850-1900 anomaly of the smoothed
	// non-ensemble series, relative to the reference period.
	PreindustrialLevel *Value `json:"preindustrial_level,omitempty"`
	ProcessedAt     time.Time         `json:"processed_at"`
}

// ResultID derives a deterministic name-based UUID from the request and the
// reference period, so replaying a request yields the same ID.
func ResultID(req AnalysisRequest, period ReferencePeriod) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s|%d|%s", req.ID, req.Region, req.Resolution, req.Kind, req.Smoothing, period)
	for _, s := range req.Sources {
		fmt.Fprintf(&b, "|%s:%s:%s:%g", s.Name, s.Variable, s.Mask, s.Offset)
	}
	if d := req.Difference; d != nil {
		fmt.Fprintf(&b, "|diff:%s-%s", d.Minuend, d.Subtrahend)
	}
	if req.PreindustrialLevel {
		b.WriteString("|preindustrial")
	}
	for _, q := range req.DailyQuantiles {
		fmt.Fprintf(&b, "|q:%g", q)
	}
	return uuid.NewSHA1(resultNamespace, []byte(b.String())).String()
}

// NoDataCells counts the undefined anomaly values across all sources.
func (r AnomalyResult) NoDataCells() int {
	n := 0
	for _, f := range r.Anomalies {
		n += f.Len() - f.CountValid()
	}
	return n
}
