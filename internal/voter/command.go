package voter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/rally-hq/rally/internal/errors"
	"github.com/rally-hq/rally/internal/logging"
	"github.com/rally-hq/rally/internal/vote"
)

// maxStderrTail bounds how much of a failing command's stderr ends up in
// the error message.
const maxStderrTail = 512

// Command runs an external program once per attempt. The program must print
// a JSON object {"success": bool, "results": [{"name", "percent"}]} as the
// last non-empty line of its stdout; anything printed before is ignored.
type Command struct {
	name   string
	args   []string
	env    []string
	logger *logging.Logger
}

// NewCommand creates a Command running name with args.
func NewCommand(name string, args []string, logger *logging.Logger) *Command {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Command{
		name:   name,
		args:   slices.Clone(args),
		logger: logger.WithComponent("voter"),
	}
}

// WithEnv appends KEY=VALUE pairs to the child environment.
func (c *Command) WithEnv(kv ...string) *Command {
	c.env = append(c.env, kv...)
	return c
}

// Attempt runs the command and decodes its result.
func (c *Command) Attempt(ctx context.Context) (vote.Result, error) {
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	if len(c.env) > 0 {
		cmd.Env = append(cmd.Environ(), c.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return vote.Result{}, errors.NewVoteError("voter command interrupted", ctxErr)
		}
		msg := fmt.Sprintf("voter command %s failed", c.name)
		if tail := stderrTail(stderr.Bytes()); tail != "" {
			msg += ": " + tail
		}
		return vote.Result{}, errors.NewVoteError(msg, err)
	}

	res, err := ParseResult(stdout.Bytes())
	if err != nil {
		c.logger.Debug("unparseable voter output", "stdout", stderrTail(stdout.Bytes()))
		return vote.Result{}, err
	}
	return res, nil
}

// ParseResult decodes the last JSON line of out. The results are sorted by
// percent, highest first, and repeated names keep only their first entry.
func ParseResult(out []byte) (vote.Result, error) {
	line := lastLine(out)
	if line == "" {
		return vote.Result{}, errors.NewVoteError("voter produced no output", nil)
	}

	var res vote.Result
	if err := json.Unmarshal([]byte(line), &res); err != nil {
		return vote.Result{}, errors.NewVoteError("decode voter output", err)
	}
	res.Snapshot = Normalize(res.Snapshot)
	if err := res.Validate(); err != nil {
		return vote.Result{}, err
	}
	return res, nil
}

// Normalize returns snap sorted by percent descending with duplicate names
// and blank names removed. Names are trimmed and negative percents become 0.
// The sort is stable so ties keep their order.
func Normalize(snap vote.Snapshot) vote.Snapshot {
	if len(snap) == 0 {
		return snap
	}
	out := make(vote.Snapshot, 0, len(snap))
	seen := make(map[string]bool, len(snap))
	for _, e := range snap {
		key := strings.ToLower(strings.TrimSpace(e.Name))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		e.Name = strings.TrimSpace(e.Name)
		e.Percent = max(e.Percent, 0)
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b vote.Entry) int {
		switch {
		case a.Percent > b.Percent:
			return -1
		case a.Percent < b.Percent:
			return 1
		}
		return 0
	})
	return out
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func stderrTail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxStderrTail {
		s = "..." + s[len(s)-maxStderrTail:]
	}
	return s
}
