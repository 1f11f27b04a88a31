// Package invalidation defines the content-change event contract and the
// Kafka consumer that drops stale content cache entries when one arrives.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

// Event is one content change published by the content service. Regions
// names the administrative regions whose cached lists are now stale; the
// unfiltered list is always dropped alongside them.
type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	TS      time.Time `json:"ts"`
	ItemID  any       `json:"item_id,omitempty"`
	Regions []string  `json:"regions"`
	Source  string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "insert", "update", "delete":
	default:
		return fmt.Errorf("op must be insert|update|delete")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if len(e.Regions) == 0 {
		return fmt.Errorf("at least one region is required")
	}
	for _, r := range e.Regions {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("regions must not contain blank entries")
		}
	}
	return nil
}
