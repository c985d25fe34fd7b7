// Package extract retrieves raw channel and video fields from live pages.
// It is the unreliable side of the pipeline: every public entry point can
// fail with a timeout, a bot challenge, or a generic extraction error, and
// the retry orchestrator treats all three as one transient class.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureClass partitions extraction failures for logging. The retry loop
// treats every class identically; callers that want different telemetry
// for bot challenges can still distinguish them here.
type FailureClass string

const (
	FailTimeout   FailureClass = "timeout"
	FailChallenge FailureClass = "challenge"
	FailOther     FailureClass = "other"
)

// ChallengeError reports a detected bot challenge on the fetched page.
type ChallengeError struct {
	URL    string
	Marker string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("extract: bot challenge (%s) at %s", e.Marker, e.URL)
}

// IsChallenge reports whether err is (or wraps) a ChallengeError.
func IsChallenge(err error) bool {
	var ce *ChallengeError
	return errors.As(err, &ce)
}

// Classify maps an extraction error to its failure class.
func Classify(err error) FailureClass {
	if err == nil {
		return FailOther
	}
	if IsChallenge(err) {
		return FailChallenge
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailTimeout
	}
	return FailOther
}
