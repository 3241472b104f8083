package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "voting.max_threads")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateVoting()...)
	errors = append(errors, c.validateVoter()...)
	errors = append(errors, c.validateActivityLog()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateVoting validates the VotingConfig
func (c *Config) validateVoting() []ValidationError {
	var errors []ValidationError
	v := c.Voting

	if strings.TrimSpace(v.Target) == "" {
		errors = append(errors, ValidationError{
			Field:   "voting.target",
			Value:   v.Target,
			Message: "is required",
		})
	}

	if v.MaxThreads < 1 {
		errors = append(errors, ValidationError{
			Field:   "voting.max_threads",
			Value:   v.MaxThreads,
			Message: "must be at least 1",
		})
	}
	if v.StartThreads < 1 {
		errors = append(errors, ValidationError{
			Field:   "voting.start_threads",
			Value:   v.StartThreads,
			Message: "must be at least 1",
		})
	}
	// Only meaningful once both bounds are individually valid.
	if v.MaxThreads >= 1 && v.StartThreads > v.MaxThreads {
		errors = append(errors, ValidationError{
			Field:   "voting.start_threads",
			Value:   v.StartThreads,
			Message: fmt.Sprintf("cannot exceed voting.max_threads (%d)", v.MaxThreads),
		})
	}

	if v.LeadThreshold < 0 {
		errors = append(errors, ValidationError{
			Field:   "voting.lead_threshold",
			Value:   v.LeadThreshold,
			Message: "must be non-negative",
		})
	}

	if v.SaveTopResults && v.TopResultsCount < 1 {
		errors = append(errors, ValidationError{
			Field:   "voting.top_results_count",
			Value:   v.TopResultsCount,
			Message: "must be at least 1 when save_top_results is enabled",
		})
	}

	if v.FailureDelaySeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "voting.failure_delay_seconds",
			Value:   v.FailureDelaySeconds,
			Message: "must be non-negative",
		})
	}

	if v.AttemptTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "voting.attempt_timeout_seconds",
			Value:   v.AttemptTimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

// validateVoter validates the VoterConfig
func (c *Config) validateVoter() []ValidationError {
	var errors []ValidationError

	if !c.Voter.Simulate && strings.TrimSpace(c.Voter.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "voter.command",
			Value:   c.Voter.Command,
			Message: "is required unless voter.simulate is enabled",
		})
	}

	if c.Voter.Simulate && slices.ContainsFunc(c.Voter.SimulateCompetitors, func(name string) bool {
		return strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(c.Voting.Target))
	}) {
		errors = append(errors, ValidationError{
			Field:   "voter.simulate_competitors",
			Value:   c.Voter.SimulateCompetitors,
			Message: "must not include voting.target",
		})
	}

	return errors
}

// validateActivityLog validates the ActivityLogConfig
func (c *Config) validateActivityLog() []ValidationError {
	var errors []ValidationError

	path := c.ActivityLog.Path
	if strings.TrimSpace(path) == "" {
		errors = append(errors, ValidationError{
			Field:   "activity_log.path",
			Value:   path,
			Message: "is required",
		})
	}
	if strings.ContainsRune(path, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "activity_log.path",
			Value:   path,
			Message: "path contains invalid null character",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
