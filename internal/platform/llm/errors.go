package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"unicode/utf8"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/apperr"
)

// UpstreamError is a transport-level failure talking to the provider. It is
// never retried by the generator.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s request timed out", e.Provider)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
	default:
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Kind() apperr.Kind {
	if e.Timeout {
		return apperr.KindUpstreamTimeout
	}
	return apperr.KindUpstream
}

// newUpstreamError classifies a transport error, flagging deadlines and
// network timeouts.
func newUpstreamError(provider string, err error) *UpstreamError {
	ue := &UpstreamError{Provider: provider, Err: err}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		ue.Timeout = true
	}
	return ue
}

const extractionPrefixLen = 500

// ExtractionError means no JSON object could be located in model output.
type ExtractionError struct {
	// Prefix is the start of the raw text, truncated for diagnostics.
	Prefix string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not extract valid JSON from response: %s...", e.Prefix)
}

func (e *ExtractionError) Kind() apperr.Kind { return apperr.KindExtraction }

func newExtractionError(raw string) *ExtractionError {
	prefix := raw
	if len(prefix) > extractionPrefixLen {
		n := extractionPrefixLen
		for n > 0 && !utf8.RuneStart(prefix[n]) {
			n--
		}
		prefix = prefix[:n]
	}
	return &ExtractionError{Prefix: prefix}
}
