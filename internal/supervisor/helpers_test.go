package supervisor

import (
	"time"

	"github.com/neptaco/mcproc/internal/common"
)

func newTestKey() common.ProcessKey {
	return common.NewProcessKey("demo", "web")
}

func fixedTime() time.Time {
	return time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC)
}
