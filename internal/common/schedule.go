package common

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// standardParser parses 5-field crontab expressions (minute hour dom month dow)
var standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseJobSchedule parses a 5-field cron expression
func ParseJobSchedule(schedule string) (cron.Schedule, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return nil, fmt.Errorf("empty cron expression")
	}
	if !strings.HasPrefix(schedule, "@") && len(strings.Fields(schedule)) != 5 {
		return nil, fmt.Errorf("invalid cron format: expected 5 fields, got %d", len(strings.Fields(schedule)))
	}
	sched, err := standardParser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return sched, nil
}

// ValidateJobSchedule validates a cron schedule expression
func ValidateJobSchedule(schedule string) error {
	_, err := ParseJobSchedule(schedule)
	return err
}
