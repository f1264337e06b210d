package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageRunDone       Stage = "RUN_DONE"
	StageListingDone   Stage = "LISTING_DONE"
	StageListingFailed Stage = "LISTING_FAILED"
	StagePostWritten   Stage = "POST_WRITTEN"
	StagePostFailed    Stage = "POST_FAILED"
)

// Event captures one step of a scrape run.
type Event struct {
	// RunID identifies the scrape run.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Country is empty for run-level events.
	Country string
	// URL is the listing or post URL.
	URL string
	// Object is the path written for POST_WRITTEN events.
	Object string
	// Bytes is the size of the written post file.
	Bytes int64
	// Count is the number of jobs a listing enqueued.
	Count int
	Dur   time.Duration
	// Note carries error text for failure stages.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageListingDone, StageListingFailed, StagePostWritten, StagePostFailed:
		if e.Country == "" {
			return fmt.Errorf("%s requires country", e.Stage)
		}
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Failed reports whether the event records a dropped job.
func (e Event) Failed() bool {
	return e.Stage == StageListingFailed || e.Stage == StagePostFailed
}
