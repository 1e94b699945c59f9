/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cronutil evaluates monitor trigger conditions (spec.md 4.1/8):
// whether a cron expression is triggered at a reference time given the last
// execution, and how long until its next trigger, both timezone-aware.
package cronutil

import (
	"time"

	"github.com/robfig/cron/v3"
)

// standardParser accepts the five conventional cron fields (minute hour dom
// month dow), matching the teacher's schedule parsing in
// internal/analyzer/sla.go and internal/scheduler/helpers.go.
var standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parse validates a cron expression, returning a reusable schedule.
func Parse(cronExpr string) (cron.Schedule, error) {
	return standardParser.Parse(cronExpr)
}

func location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsTriggered reports whether a monitor scheduled on cronExpr (interpreted in
// tz) is due to run at reference time t, given its last execution tLast. A
// nil tLast is always triggered (a monitor that has never run is always
// due). Otherwise the schedule's next instant at or after tLast must be at
// or before t. An invalid cronExpr is an error even when tLast is nil.
func IsTriggered(cronExpr string, tz string, tLast *time.Time, t time.Time) (bool, error) {
	sched, err := Parse(cronExpr)
	if err != nil {
		return false, err
	}

	if tLast == nil {
		return true, nil
	}

	loc := location(tz)
	next := sched.Next(tLast.In(loc))
	return !next.After(t.In(loc)), nil
}

// TimeUntilNextTrigger returns the duration from t until cronExpr's next
// scheduled instant after t, interpreted in tz. The result is always
// strictly positive, since robfig/cron.Schedule.Next never returns a time
// at or before its argument.
func TimeUntilNextTrigger(cronExpr string, tz string, t time.Time) (time.Duration, error) {
	sched, err := Parse(cronExpr)
	if err != nil {
		return 0, err
	}

	loc := location(tz)
	tInLoc := t.In(loc)
	next := sched.Next(tInLoc)
	return next.Sub(tInLoc), nil
}
