package activitylog

import (
	"encoding/json"
	"time"

	"github.com/rally-hq/rally/internal/stats"
	"github.com/rally-hq/rally/internal/timing"
	"github.com/rally-hq/rally/internal/vote"
)

// Record is one completed vote attempt as persisted in the log. Pointer
// fields are written as null when the value does not apply.
type Record struct {
	Sequence               int64         `json:"sequence"`
	SessionID              string        `json:"sessionId"`
	WorkerID               string        `json:"workerId"`
	Timestamp              time.Time     `json:"timestamp"`
	Success                bool          `json:"success"`
	Rank                   *int          `json:"rank"`
	Percent                *float64      `json:"percent"`
	ConsecutiveBehindCount int           `json:"consecutiveBehindCount"`
	Tier                   timing.Tier   `json:"tier"`
	LeadPercent            *float64      `json:"leadPercent"`
	BackoffApplied         bool          `json:"backoffApplied"`
	TopResults             vote.Snapshot `json:"topResults,omitempty"`
}

// Document is the on-disk layout of the activity log. Records are kept as
// raw JSON so entries written by other versions, or edited by hand, are
// preserved byte for byte.
type Document struct {
	Summary stats.Summary     `json:"summary"`
	Records []json.RawMessage `json:"records"`
}

// recordTime extracts the timestamp of a raw record. Records without a
// parseable timestamp sort first.
func recordTime(raw json.RawMessage) time.Time {
	var r struct {
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return time.Time{}
	}
	return r.Timestamp
}

// DecodeRecords decodes the records of doc, skipping entries that do not
// match the Record layout.
func (d *Document) DecodeRecords() []Record {
	out := make([]Record, 0, len(d.Records))
	for _, raw := range d.Records {
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}
