package vote

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rally-hq/rally/internal/errors"
)

func TestSnapshot_Find(t *testing.T) {
	snap := Snapshot{
		{Name: "Alice", Percent: 40},
		{Name: "Jane Doe", Percent: 35},
		{Name: "Bob", Percent: 25},
	}

	tests := []struct {
		target   string
		wantRank int
		wantOK   bool
	}{
		{"Alice", 1, true},
		{"jane doe", 2, true},
		{"  JANE DOE\t", 2, true},
		{"Jane", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rank, entry, ok := snap.Find(tt.target)
			if rank != tt.wantRank || ok != tt.wantOK {
				t.Errorf("Find(%q) = (%d, %v), want (%d, %v)", tt.target, rank, ok, tt.wantRank, tt.wantOK)
			}
			if ok && entry != snap[rank-1] {
				t.Errorf("Find(%q) entry = %+v, want %+v", tt.target, entry, snap[rank-1])
			}
		})
	}
}

func TestSnapshot_Top(t *testing.T) {
	snap := Snapshot{{"A", 50}, {"B", 30}, {"C", 20}}

	if got := snap.Top(2); len(got) != 2 || got[1].Name != "B" {
		t.Errorf("Top(2) = %v", got)
	}
	if got := snap.Top(10); len(got) != 3 {
		t.Errorf("Top(10) length = %d, want 3", len(got))
	}
	if got := snap.Top(0); got != nil {
		t.Errorf("Top(0) = %v, want nil", got)
	}

	top := snap.Top(1)
	top[0].Name = "changed"
	if snap[0].Name != "A" {
		t.Error("Top should return a copy")
	}
}

func TestSameName(t *testing.T) {
	if !SameName(" Jane ", "jane") {
		t.Error("SameName should ignore case and surrounding whitespace")
	}
	if SameName("Jane", "Janet") {
		t.Error("SameName should require an exact match")
	}
}

func TestResult_JSON(t *testing.T) {
	var r Result
	data := `{"success": true, "results": [{"name": "Jane", "percent": 51.5}, {"name": "Bob", "percent": 48.5}]}`
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !r.Success || len(r.Snapshot) != 2 || r.Snapshot[0].Percent != 51.5 {
		t.Errorf("decoded %+v", r)
	}
}

func TestResult_Validate(t *testing.T) {
	tests := []struct {
		name    string
		result  Result
		wantErr bool
	}{
		{"success with results", Result{Success: true, Snapshot: Snapshot{{Name: "Jane", Percent: 60}}}, false},
		{"rejected without results", Result{Success: false}, false},
		{"success without results", Result{Success: true, Snapshot: Snapshot{}}, true},
		{"success with nil results", Result{Success: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrEmptyResults) {
				t.Errorf("Validate() = %v, want ErrEmptyResults", err)
			}
		})
	}
}

func TestVoterFunc(t *testing.T) {
	var v Voter = VoterFunc(func(ctx context.Context) (Result, error) {
		return Result{Success: true}, nil
	})
	r, err := v.Attempt(context.Background())
	if err != nil || !r.Success {
		t.Errorf("Attempt() = %+v, %v", r, err)
	}
}
