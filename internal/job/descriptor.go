package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Descriptor is the wire form of a job on the work queue. It is a delivery
// mechanism only: after a worker pops it, the Record in the store is the
// sole source of truth and the descriptor is discarded.
type Descriptor struct {
	TrackingID string `json:"tracking_id"`
	FilePath   string `json:"file_path"`
}

// Encode serializes the descriptor for publishing.
func (d *Descriptor) Encode() ([]byte, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return body, nil
}

// DecodeDescriptor parses a queue message body.
func DecodeDescriptor(body []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor: %w", err)
	}
	if d.TrackingID == "" {
		return nil, fmt.Errorf("descriptor missing tracking_id")
	}
	return &d, nil
}

// Store is the job record store contract. Create only ever writes new keys
// (intake); Update overwrites the full record (read-modify-write). Both are
// safe for concurrent use by independent callers.
type Store interface {
	Get(ctx context.Context, trackingID string) (*Record, error)
	Create(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record) error
}

// Queue is the work queue contract. BlockingPop waits up to timeout for the
// next descriptor and returns (nil, nil) when the queue stays empty; no two
// callers ever observe the same popped descriptor.
type Queue interface {
	Push(ctx context.Context, d *Descriptor) error
	BlockingPop(ctx context.Context, timeout time.Duration) (*Descriptor, error)
}
