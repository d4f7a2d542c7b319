package imagepipe

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Valves is the host-supplied configuration surface: endpoint, key and model
// for the upstream API, plus the billing and timeout knobs the host exposes.
// Loaded once per process and treated as immutable thereafter.
type Valves struct {
	// APIBaseURL is the upstream generation API base URL.
	APIBaseURL string

	// APIKey authenticates against the upstream API.
	APIKey string

	// ModelID is the upstream model name. An empty model hides the pipe from
	// the host's model listing.
	ModelID string

	// CostPerImage is the billing amount reported per generation.
	// Zero disables the cost note.
	CostPerImage float64

	// RequestTimeout bounds one upstream request.
	RequestTimeout time.Duration
}

// DefaultValves returns the defaults the host starts from.
func DefaultValves() Valves {
	return Valves{
		APIBaseURL:     "https://generativelanguage.googleapis.com/v1beta",
		ModelID:        "gemini-2.5-flash-image-preview",
		CostPerImage:   0.1,
		RequestTimeout: 300 * time.Second,
	}
}

// ValvesFromEnv builds valves from IMAGE_PIPE_* environment variables on top
// of the defaults. Callers wanting .env discovery load it first (see
// examples/helpers).
//
// Variables: IMAGE_PIPE_BASE_URL, IMAGE_PIPE_API_KEY, IMAGE_PIPE_MODEL_ID,
// IMAGE_PIPE_COST_PER_IMAGE, IMAGE_PIPE_TIMEOUT_SECONDS.
func ValvesFromEnv() (Valves, error) {
	v := DefaultValves()

	if s := os.Getenv("IMAGE_PIPE_BASE_URL"); s != "" {
		v.APIBaseURL = s
	}
	if s := os.Getenv("IMAGE_PIPE_API_KEY"); s != "" {
		v.APIKey = s
	}
	if s := os.Getenv("IMAGE_PIPE_MODEL_ID"); s != "" {
		v.ModelID = s
	}
	if s := os.Getenv("IMAGE_PIPE_COST_PER_IMAGE"); s != "" {
		cost, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Valves{}, &ConfigError{Field: "IMAGE_PIPE_COST_PER_IMAGE", Value: s, Reason: "not a number"}
		}
		v.CostPerImage = cost
	}
	if s := os.Getenv("IMAGE_PIPE_TIMEOUT_SECONDS"); s != "" {
		secs, err := strconv.Atoi(s)
		if err != nil {
			return Valves{}, &ConfigError{Field: "IMAGE_PIPE_TIMEOUT_SECONDS", Value: s, Reason: "not an integer"}
		}
		v.RequestTimeout = time.Duration(secs) * time.Second
	}

	if err := v.Validate(); err != nil {
		return Valves{}, err
	}
	return v, nil
}

// Validate checks the valves for values the pipe cannot operate with.
func (v Valves) Validate() error {
	if v.APIBaseURL == "" {
		return &ConfigError{Field: "APIBaseURL", Value: v.APIBaseURL, Reason: "must not be empty"}
	}
	if v.RequestTimeout <= 0 {
		return &ConfigError{Field: "RequestTimeout", Value: v.RequestTimeout, Reason: "must be positive"}
	}
	if v.CostPerImage < 0 {
		return &ConfigError{Field: "CostPerImage", Value: v.CostPerImage, Reason: "must not be negative"}
	}
	return nil
}

// ConfigError represents an invalid valve value.
type ConfigError struct {
	Field  string // The valve that failed validation
	Value  any    // The invalid value
	Reason string // Human-readable explanation
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid valve '%s' (value: %v): %s", e.Field, e.Value, e.Reason)
}
