package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the crawl milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart       Stage = "RUN_START"
	StageRunDone        Stage = "RUN_DONE"
	StageSourceStart    Stage = "SOURCE_START"
	StageSourceSkipped  Stage = "SOURCE_SKIPPED"
	StageCatalogDone    Stage = "CATALOG_DONE"
	StageSourceDone     Stage = "SOURCE_DONE"
	StageSourceFailed   Stage = "SOURCE_FAILED"
	StageProductDone    Stage = "PRODUCT_DONE"
	StageProductFailed  Stage = "PRODUCT_FAILED"
	StageProductSkipped Stage = "PRODUCT_SKIPPED"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single crawl milestone.
type Event struct {
	// RunID identifies the crawl run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Source is the display name of the source the event belongs to.
	Source string
	// ProductID scopes product stages to a single product.
	ProductID string
	// URL is the request URL, when the stage involved one.
	URL string
	// Bytes is the size of the persisted document.
	Bytes int64
	// StatusClass groups the HTTP response code, empty for transport errors.
	StatusClass StatusClass
	// Dur is the fetch or source latency.
	Dur time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageSourceStart, StageSourceSkipped, StageCatalogDone, StageSourceDone, StageSourceFailed:
		if e.Stage != StageSourceSkipped && e.Source == "" {
			return fmt.Errorf("%s requires source", e.Stage)
		}
	case StageProductDone, StageProductFailed, StageProductSkipped:
		if e.Source == "" {
			return fmt.Errorf("%s requires source", e.Stage)
		}
		if e.Stage == StageProductDone && e.ProductID == "" {
			return errors.New("product done requires product id")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
