package voter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rally-hq/rally/internal/errors"
	"github.com/rally-hq/rally/internal/vote"
	"github.com/rally-hq/rally/internal/vote/mocks"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    vote.Result
		wantErr bool
	}{
		{
			name: "single line",
			out:  `{"success": true, "results": [{"name": "B", "percent": 10}, {"name": "A", "percent": 30}]}`,
			want: vote.Result{Success: true, Snapshot: vote.Snapshot{{Name: "A", Percent: 30}, {Name: "B", Percent: 10}}},
		},
		{
			name: "log lines before the result",
			out:  "loading page\nclicked vote\n{\"success\": false, \"results\": []}\n\n",
			want: vote.Result{Success: false, Snapshot: vote.Snapshot{}},
		},
		{
			name: "duplicate names keep the first",
			out:  `{"success": true, "results": [{"name": "A", "percent": 30}, {"name": " a ", "percent": 29}, {"name": "", "percent": 5}]}`,
			want: vote.Result{Success: true, Snapshot: vote.Snapshot{{Name: "A", Percent: 30}}},
		},
		{
			name: "names trimmed and negative percents clamped",
			out:  `{"success": true, "results": [{"name": " Target ", "percent": -3}, {"name": "Other", "percent": 12}]}`,
			want: vote.Result{Success: true, Snapshot: vote.Snapshot{{Name: "Other", Percent: 12}, {Name: "Target", Percent: 0}}},
		},
		{name: "empty", out: "  \n", wantErr: true},
		{name: "not json", out: "done", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResult([]byte(tt.out))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsRetryable(err))
				assert.True(t, errors.Is(err, errors.ErrTransientVote))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResult_SuccessNeedsResults(t *testing.T) {
	for _, out := range []string{
		`{"success": true, "results": []}`,
		`{"success": true}`,
		`{"success": true, "results": [{"name": "  ", "percent": 12}]}`,
	} {
		_, err := ParseResult([]byte(out))
		require.Error(t, err, out)
		assert.True(t, errors.Is(err, errors.ErrEmptyResults), out)
		assert.True(t, errors.IsRetryable(err), out)
	}
}

func TestCommand_Attempt(t *testing.T) {
	ok := NewCommand("sh", []string{"-c", `echo '{"success": true, "results": [{"name": "T", "percent": 55.5}]}'`}, nil)
	res, err := ok.Attempt(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, vote.Snapshot{{Name: "T", Percent: 55.5}}, res.Snapshot)

	failing := NewCommand("sh", []string{"-c", "echo boom >&2; exit 3"}, nil)
	_, err = failing.Attempt(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.True(t, errors.IsRetryable(err))
}

func TestCommand_Env(t *testing.T) {
	c := NewCommand("sh", []string{"-c", `echo "{\"success\": true, \"results\": [{\"name\": \"$RALLY_TARGET\", \"percent\": 1}]}"`}, nil).
		WithEnv("RALLY_TARGET=Env Target")
	res, err := c.Attempt(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Snapshot, 1)
	assert.Equal(t, "Env Target", res.Snapshot[0].Name)
}

func TestGuard_TimesOutSlowCommand(t *testing.T) {
	g := NewGuard(NewCommand("sleep", []string{"5"}, nil), 100*time.Millisecond, nil)

	start := time.Now()
	_, err := g.Attempt(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrVoteTimeout))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestGuard_ConvertsPanics(t *testing.T) {
	g := NewGuard(vote.VoterFunc(func(context.Context) (vote.Result, error) {
		panic("selector not found")
	}), time.Second, nil)

	_, err := g.Attempt(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrVoterPanic))
	assert.True(t, errors.Is(err, errors.ErrTransientVote))
	assert.Contains(t, err.Error(), "selector not found")
}

func TestGuard_WrapsPlainErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockVoter(ctrl)
	m.EXPECT().Attempt(gomock.Any()).Return(vote.Result{}, errors.New("connection reset"))

	_, err := NewGuard(m, time.Second, nil).Attempt(context.Background())
	var ve *errors.VoteError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGuard_PassesResultsThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockVoter(ctrl)
	want := vote.Result{Success: true, Snapshot: vote.Snapshot{{Name: "T", Percent: 60}}}
	m.EXPECT().Attempt(gomock.Any()).Return(want, nil)

	got, err := NewGuard(m, 0, nil).Attempt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGuard_RejectsSuccessWithoutResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockVoter(ctrl)
	m.EXPECT().Attempt(gomock.Any()).Return(vote.Result{Success: true, Snapshot: vote.Snapshot{}}, nil)

	_, err := NewGuard(m, time.Second, nil).Attempt(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptyResults))
	assert.True(t, errors.Is(err, errors.ErrTransientVote))
}

func TestGuard_CanceledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGuard(vote.VoterFunc(func(ctx context.Context) (vote.Result, error) {
		<-ctx.Done()
		return vote.Result{}, ctx.Err()
	}), time.Minute, nil)

	_, err := g.Attempt(ctx)
	assert.True(t, errors.Is(err, errors.ErrCanceled))
}

func TestSimulator_Deterministic(t *testing.T) {
	run := func() []vote.Snapshot {
		s := NewSimulator("Target", []string{"A", "B"}, 42)
		var out []vote.Snapshot
		for range 20 {
			res, err := s.Attempt(context.Background())
			require.NoError(t, err)
			out = append(out, res.Snapshot)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestSimulator_SnapshotShape(t *testing.T) {
	s := NewSimulator("Target", []string{"A", "B", "C"}, 7)
	res, err := s.Attempt(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Snapshot, 4)

	var sum float64
	for i, e := range res.Snapshot {
		sum += e.Percent
		if i > 0 {
			assert.LessOrEqual(t, e.Percent, res.Snapshot[i-1].Percent)
		}
	}
	assert.InDelta(t, 100, sum, 0.1)

	_, _, found := res.Snapshot.Find("target")
	assert.True(t, found)
	assert.Equal(t, float64(101), s.Votes("TARGET"))
}

func TestSimulator_FailureAndRejectRates(t *testing.T) {
	fail := NewSimulator("T", nil, 1, WithFailureRate(1))
	_, err := fail.Attempt(context.Background())
	assert.True(t, errors.Is(err, errors.ErrTransientVote))

	reject := NewSimulator("T", nil, 1, WithRejectRate(1))
	res, err := reject.Attempt(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Snapshot)
}

func TestSimulator_ConcurrentAttempts(t *testing.T) {
	s := NewSimulator("T", []string{"A"}, 3, WithPressure(0))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_, _ = s.Attempt(context.Background())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(100+400), s.Votes("T"))
	assert.Equal(t, float64(100), s.Votes("A"))
}

func TestSimulator_LatencyRespectsContext(t *testing.T) {
	s := NewSimulator("T", nil, 1, WithLatency(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Attempt(ctx)
	assert.True(t, errors.Is(err, errors.ErrTransientVote))
}
