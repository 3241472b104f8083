package activitylog

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/rally-hq/rally/internal/stats"
)

// Merge combines several logs into one. Summaries are added key by key and
// records are concatenated, then stable-sorted by timestamp so records with
// equal timestamps keep their input order.
func Merge(docs ...*Document) *Document {
	out := &Document{Summary: stats.Summary{}, Records: []json.RawMessage{}}
	for _, d := range docs {
		if d == nil {
			continue
		}
		out.Summary = out.Summary.Add(d.Summary)
		out.Records = append(out.Records, d.Records...)
	}

	type keyed struct {
		at  time.Time
		raw json.RawMessage
	}
	ks := make([]keyed, len(out.Records))
	for i, raw := range out.Records {
		ks[i] = keyed{at: recordTime(raw), raw: raw}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		return a.at.Compare(b.at)
	})
	for i := range ks {
		out.Records[i] = ks[i].raw
	}
	return out
}

// MergeFiles reads each path and merges the results. Any unreadable or
// corrupt input fails the whole merge.
func MergeFiles(paths ...string) (*Document, error) {
	docs := make([]*Document, 0, len(paths))
	for _, p := range paths {
		d, err := Read(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return Merge(docs...), nil
}
