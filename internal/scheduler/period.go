package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ParsePeriod parses a task period.
//
// Supported forms:
//   - Go duration: "250ms", "1.5s"
//   - Prefixed duration: "every:2s", "interval:500ms"
//   - Cron descriptor: "@every 5s" (robfig/cron rounds to whole seconds, minimum 1s)
//
// Calendar cron specs ("*/5 * * * *", "@hourly") are rejected: a frame
// scheduler only knows elapsed game time, not wall-clock dates.
func ParsePeriod(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("period required")
	}

	low := strings.ToLower(s)
	for _, prefix := range []string{"every:", "interval:"} {
		if strings.HasPrefix(low, prefix) {
			return parsePeriodDuration(strings.TrimSpace(s[len(prefix):]))
		}
	}

	if strings.HasPrefix(s, "@") {
		sched, err := cron.ParseStandard(s)
		if err != nil {
			return 0, fmt.Errorf("invalid period %q: %w", raw, err)
		}
		every, ok := sched.(cron.ConstantDelaySchedule)
		if !ok {
			return 0, fmt.Errorf("invalid period %q: only @every descriptors are supported", raw)
		}
		return every.Delay, nil
	}

	return parsePeriodDuration(s)
}

func parsePeriodDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, fmt.Errorf("period required")
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q (use a duration like '250ms' or '@every 2s')", v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("period must be > 0")
	}
	return d, nil
}
