package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rally-hq/rally/internal/activitylog"
	"github.com/rally-hq/rally/internal/errors"
	"github.com/rally-hq/rally/internal/event"
	"github.com/rally-hq/rally/internal/logging"
	"github.com/rally-hq/rally/internal/position"
	"github.com/rally-hq/rally/internal/timing"
	"github.com/rally-hq/rally/internal/vote"
)

// runWorker is the loop of one worker: attempt, record, sleep, repeat. It
// returns when ctx is cancelled or, for a parallel worker, when its slot
// has been asked to stop.
func (p *Pool) runWorker(ctx context.Context, slot int) {
	id := WorkerID(slot)
	logger := p.cfg.Logger.WithWorker(id)
	role := timing.RolePrimary
	if slot > 0 {
		role = timing.RoleParallel
		if !p.cfg.State.MarkRunning(slot) {
			logger.Debug("slot stopped before worker began")
			p.apply(p.cfg.State.MarkStopped(slot))
			return
		}
	}

	logger.Info("worker started")
	p.cfg.Bus.Publish(event.NewWorkerStartedEvent(id, slot))

	reason := "shutdown"
	defer func() {
		logger.Info("worker stopped", "reason", reason)
		p.finish(slot, reason)
	}()

	for {
		if slot > 0 && p.cfg.State.StopRequested(slot) {
			reason = "scaled down"
			return
		}
		if ctx.Err() != nil {
			return
		}

		delay := p.iterate(ctx, id, role, logger)

		select {
		case <-ctx.Done():
			if slot > 0 && p.cfg.State.StopRequested(slot) {
				reason = "scaled down"
			}
			return
		case <-p.cfg.Clock.After(delay):
		}
	}
}

// finish publishes the stop and, for parallel workers, frees the slot and
// acts on whatever the freed slot now calls for.
func (p *Pool) finish(slot int, reason string) {
	p.cfg.Bus.Publish(event.NewWorkerStoppedEvent(WorkerID(slot), slot, reason))
	if slot > 0 {
		p.apply(p.cfg.State.MarkStopped(slot))
	}
}

// iterate runs one attempt and returns how long to sleep before the next.
// A panic anywhere in the iteration is contained here and counted as a
// failed attempt.
func (p *Pool) iterate(ctx context.Context, id string, role timing.Role, logger *logging.Logger) time.Duration {
	seq := p.cfg.Stats.NextSequence()

	var delay time.Duration
	var pc panics.Catcher
	pc.Try(func() {
		delay = p.attempt(ctx, id, seq, role, logger)
	})
	if r := pc.Recovered(); r != nil {
		p.cfg.Stats.RecordFailure()
		err := errors.NewVoteError(fmt.Sprintf("iteration panicked: %v", r.Value), errors.ErrVoterPanic).
			WithWorker(id).WithAttempt(seq)
		logger.Error("worker iteration panicked", "sequence", seq, "error", err, "stack", string(r.Stack))
		p.cfg.Bus.Publish(event.NewAttemptFailedEvent(id, seq, err, p.cfg.FailureDelay))
		return p.cfg.FailureDelay
	}
	return delay
}

func (p *Pool) attempt(ctx context.Context, id string, seq int64, role timing.Role, logger *logging.Logger) time.Duration {
	// The attempt outlives shutdown and scale down; the voter's own timeout
	// bounds it.
	actx, span := p.cfg.Tracer.Start(context.WithoutCancel(ctx), "vote.attempt",
		trace.WithAttributes(
			attribute.String("worker.id", id),
			attribute.Int64("attempt.sequence", seq),
		))
	defer span.End()

	res, err := p.cfg.Voter.Attempt(actx)
	if err == nil {
		err = res.Validate()
	}
	if err != nil {
		p.cfg.Stats.RecordFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("vote attempt failed",
			"sequence", seq,
			"error", err,
			"retry_in", p.cfg.FailureDelay.String())
		p.cfg.Bus.Publish(event.NewAttemptFailedEvent(id, seq, err, p.cfg.FailureDelay))
		return p.cfg.FailureDelay
	}

	obs := p.cfg.Tracker.Observe(res.Snapshot)
	now := p.cfg.Clock.Now().UTC()

	if !res.Success {
		// The page loaded but the vote did not register. The snapshot is
		// recorded for the log but does not move the shared state.
		snap := p.cfg.State.Snapshot()
		rec := p.record(id, seq, now, res, obs, snap.Behind, p.cfg.Timing.Tier(snap.Behind, role), false)
		p.append(rec, logger)
		span.SetStatus(codes.Error, "vote not accepted")
		logger.Warn("vote not accepted", "sequence", seq, "retry_in", p.cfg.FailureDelay.String())

		ev := event.NewVoteCompletedEvent(id, seq, false)
		fillObservation(&ev, obs)
		ev.Behind = snap.Behind
		ev.Tier = rec.Tier
		ev.Multiplier = snap.Multiplier
		ev.Delay = p.cfg.FailureDelay
		ev.Active = snap.Active
		p.cfg.Bus.Publish(ev)
		return p.cfg.FailureDelay
	}

	upd := p.cfg.State.Apply(obs)
	tier, base := p.cfg.Timing.Delay(upd.Behind, role)
	delay := timing.ApplyMultiplier(base, upd.Multiplier)

	p.cfg.Stats.RecordSuccess(tier, upd.BackoffApplied)
	p.append(p.record(id, seq, now, res, obs, upd.Behind, tier, upd.BackoffApplied), logger)

	span.SetAttributes(
		attribute.Int("vote.rank", obs.Rank),
		attribute.Int("position.behind", upd.Behind),
		attribute.String("timing.tier", tier.String()),
		attribute.Float64("timing.delay_seconds", delay.Seconds()),
	)

	logger.Info("vote submitted",
		"sequence", seq,
		"rank", obs.Rank,
		"percent", obs.Percent,
		"ahead", obs.IsAhead,
		"behind", upd.Behind,
		"tier", tier.String(),
		"multiplier", upd.Multiplier,
		"next_in", delay.String(),
		"active", upd.Active)

	ev := event.NewVoteCompletedEvent(id, seq, true)
	fillObservation(&ev, obs)
	ev.Behind = upd.Behind
	ev.Tier = tier
	ev.Multiplier = upd.Multiplier
	ev.BackoffApplied = upd.BackoffApplied
	ev.Delay = delay
	ev.Active = upd.Active
	p.cfg.Bus.Publish(ev)

	if upd.Multiplier != upd.PreviousMultiplier {
		logger.Debug("backoff multiplier changed",
			"from", upd.PreviousMultiplier,
			"to", upd.Multiplier,
			"lead", upd.Lead)
		p.cfg.Bus.Publish(event.NewBackoffChangedEvent(upd.PreviousMultiplier, upd.Multiplier, upd.Lead, upd.HasLead))
	}

	p.apply(upd.Decisions)
	return delay
}

func (p *Pool) record(id string, seq int64, at time.Time, res vote.Result, obs position.Observation,
	behind int, tier timing.Tier, backoff bool) activitylog.Record {
	rec := activitylog.Record{
		Sequence:               seq,
		SessionID:              p.cfg.SessionID,
		WorkerID:               id,
		Timestamp:              at,
		Success:                res.Success,
		ConsecutiveBehindCount: behind,
		Tier:                   tier,
		BackoffApplied:         backoff,
	}
	if obs.Found {
		rank, pct := obs.Rank, obs.Percent
		rec.Rank = &rank
		rec.Percent = &pct
	}
	if obs.HasLead {
		lead := obs.Lead
		rec.LeadPercent = &lead
	}
	if p.cfg.SaveTopResults {
		rec.TopResults = res.Snapshot.Top(p.cfg.TopResultsCount)
	}
	return rec
}

func (p *Pool) append(rec activitylog.Record, logger *logging.Logger) {
	if err := p.cfg.Recorder.Append(rec); err != nil {
		logger.Error("failed to write activity log", "sequence", rec.Sequence, "error", err)
	}
}

func fillObservation(ev *event.VoteCompletedEvent, obs position.Observation) {
	ev.Found = obs.Found
	ev.Rank = obs.Rank
	ev.Percent = obs.Percent
	ev.IsAhead = obs.IsAhead
	ev.Lead = obs.Lead
	ev.HasLead = obs.HasLead
}
