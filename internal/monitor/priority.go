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

package monitor

import (
	"time"

	"github.com/sentinela-io/sentinela/internal/store"
)

// Priority is an Alert priority level, ordered informational < low <
// moderate < high < critical (spec.md 4.2.1).
type Priority string

const (
	PriorityInformational Priority = "informational"
	PriorityLow           Priority = "low"
	PriorityModerate      Priority = "moderate"
	PriorityHigh          Priority = "high"
	PriorityCritical      Priority = "critical"
)

var priorityRank = map[Priority]int{
	PriorityInformational: 0,
	PriorityLow:           1,
	PriorityModerate:      2,
	PriorityHigh:          3,
	PriorityCritical:      4,
}

// Less reports whether p is a lower-severity level than other.
func (p Priority) Less(other Priority) bool {
	return priorityRank[p] < priorityRank[other]
}

// highestFirst lists every level from most to least severe, the order rules
// scan in to find the "highest level whose threshold is satisfied".
var highestFirst = []Priority{PriorityCritical, PriorityHigh, PriorityModerate, PriorityLow, PriorityInformational}

// PriorityLevels maps a subset of priority levels to a numeric threshold.
// Levels absent from the map are skipped by every Rule.
type PriorityLevels map[Priority]float64

// Rule computes an Alert's priority from its monitor's active issues.
// AgeRule, CountRule and ValueRule are the three variants spec.md 4.2.1
// names; a nil result means no priority triggered.
type Rule interface {
	Calculate(issues []store.Issue, now time.Time) *Priority
}

func highestSatisfied(levels PriorityLevels, satisfies func(threshold float64) bool) *Priority {
	for _, p := range highestFirst {
		threshold, ok := levels[p]
		if !ok {
			continue
		}
		if satisfies(threshold) {
			level := p
			return &level
		}
	}
	return nil
}

// AgeRule triggers the highest level whose ThresholdSeconds is strictly
// exceeded by the oldest active issue's age.
type AgeRule struct {
	Levels PriorityLevels
}

func (r AgeRule) Calculate(issues []store.Issue, now time.Time) *Priority {
	if len(issues) == 0 {
		return nil
	}

	oldest := issues[0].CreatedAt
	for _, issue := range issues[1:] {
		if issue.CreatedAt.Before(oldest) {
			oldest = issue.CreatedAt
		}
	}
	age := now.Sub(oldest).Seconds()

	return highestSatisfied(r.Levels, func(threshold float64) bool { return age > threshold })
}

// CountRule triggers the highest level whose ThresholdCount is strictly
// exceeded by the number of active issues.
type CountRule struct {
	Levels PriorityLevels
}

func (r CountRule) Calculate(issues []store.Issue, now time.Time) *Priority {
	count := float64(len(issues))
	return highestSatisfied(r.Levels, func(threshold float64) bool { return count > threshold })
}

// ValueOperation is the comparison a ValueRule applies between an issue's
// projected data value and each configured threshold.
type ValueOperation string

const (
	OperationGreaterThan ValueOperation = "greater_than"
	OperationLesserThan  ValueOperation = "lesser_than"
)

// ValueRule projects ValueKey out of each active issue's data and triggers
// the highest level whose threshold is satisfied by any issue, using the
// most extreme projected value under Operation (the max for greater_than,
// the min for lesser_than).
type ValueRule struct {
	ValueKey  string
	Operation ValueOperation
	Levels    PriorityLevels
}

func (r ValueRule) Calculate(issues []store.Issue, now time.Time) *Priority {
	values := make([]float64, 0, len(issues))
	for _, issue := range issues {
		v, ok := issue.Data[r.ValueKey]
		if !ok {
			continue
		}
		f, ok := toFloat64(v)
		if !ok {
			continue
		}
		values = append(values, f)
	}
	if len(values) == 0 {
		return nil
	}

	switch r.Operation {
	case OperationLesserThan:
		best := values[0]
		for _, v := range values[1:] {
			if v < best {
				best = v
			}
		}
		return highestSatisfied(r.Levels, func(threshold float64) bool { return best < threshold })
	default: // OperationGreaterThan
		best := values[0]
		for _, v := range values[1:] {
			if v > best {
				best = v
			}
		}
		return highestSatisfied(r.Levels, func(threshold float64) bool { return best > threshold })
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// CalculatePriority dispatches to rule.Calculate; issues not in
// store.IssueStatusActive are ignored by callers before this is invoked
// (the Rule variants assume the caller already filtered to active issues).
func CalculatePriority(rule Rule, issues []store.Issue, now time.Time) *Priority {
	if rule == nil {
		return nil
	}
	return rule.Calculate(issues, now)
}
