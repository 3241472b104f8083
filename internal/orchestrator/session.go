package orchestrator

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// sessionTimeLayout is the timestamp half of a session ID.
const sessionTimeLayout = "20060102-150405"

// NewSessionID returns an ID of the form YYYYMMDD-HHMMSS_<8 hex>. The ID is
// fixed for the life of the process and stamped on every record.
func NewSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.Format(sessionTimeLayout) + "_" + suffix
}
