// Package activitylog persists every vote attempt together with running
// totals in a single JSON document.
//
// The file has two top-level keys: "summary", a map of counter name to
// total, and "records", the list of attempts in append order. On startup
// the existing summary becomes the baseline, and the summary written on
// every append is that baseline plus the counters of the running session.
// Keys in the summary that rally does not know about are carried through
// unchanged.
//
// Each write replaces the file through a temp file and rename. A flock(2)
// lock on "<path>.lock" keeps a second process from opening the same log.
package activitylog
