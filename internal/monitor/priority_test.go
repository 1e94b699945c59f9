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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinela-io/sentinela/internal/store"
)

func issuesAgedBy(secondsAgo int, now time.Time) []store.Issue {
	issues := make([]store.Issue, 5)
	for i := range issues {
		issues[i] = store.Issue{
			ID:        int64(i),
			ModelID:   fmt.Sprintf("%d", i),
			Data:      map[string]any{"id": i},
			CreatedAt: now.Add(-time.Duration(secondsAgo+i) * time.Second),
		}
	}
	return issues
}

func TestAgeRule_Calculate(t *testing.T) {
	now := time.Now()
	levels := PriorityLevels{
		PriorityInformational: 10,
		PriorityLow:           20,
		PriorityModerate:      30,
		PriorityHigh:          40,
		PriorityCritical:      50,
	}
	rule := AgeRule{Levels: levels}

	cases := []struct {
		secondsAgo int
		want       *Priority
	}{
		{0, nil},
		{6, nil},
		{7, ptr(PriorityInformational)},
		{16, ptr(PriorityInformational)},
		{17, ptr(PriorityLow)},
		{26, ptr(PriorityLow)},
		{27, ptr(PriorityModerate)},
		{36, ptr(PriorityModerate)},
		{37, ptr(PriorityHigh)},
		{46, ptr(PriorityHigh)},
		{47, ptr(PriorityCritical)},
		{120, ptr(PriorityCritical)},
	}

	for _, c := range cases {
		got := rule.Calculate(issuesAgedBy(c.secondsAgo, now), now)
		if c.want == nil {
			assert.Nil(t, got, "secondsAgo=%d", c.secondsAgo)
		} else {
			require.NotNil(t, got, "secondsAgo=%d", c.secondsAgo)
			assert.Equal(t, *c.want, *got, "secondsAgo=%d", c.secondsAgo)
		}
	}
}

func TestAgeRule_MissingLevelsAreSkipped(t *testing.T) {
	now := time.Now()
	issues := issuesAgedBy(10, now)

	for _, level := range []Priority{PriorityInformational, PriorityLow, PriorityModerate, PriorityHigh, PriorityCritical} {
		rule := AgeRule{Levels: PriorityLevels{level: 10}}
		got := rule.Calculate(issues, now)
		require.NotNil(t, got, "level=%s", level)
		assert.Equal(t, level, *got)
	}
}

func issuesOfCount(n int) []store.Issue {
	issues := make([]store.Issue, n)
	for i := range issues {
		issues[i] = store.Issue{ID: int64(i), ModelID: fmt.Sprintf("%d", i)}
	}
	return issues
}

func TestCountRule_Calculate(t *testing.T) {
	now := time.Now()
	levels := PriorityLevels{
		PriorityInformational: 2,
		PriorityLow:           4,
		PriorityModerate:      6,
		PriorityHigh:          8,
		PriorityCritical:      10,
	}
	rule := CountRule{Levels: levels}

	cases := []struct {
		count int
		want  *Priority
	}{
		{0, nil},
		{2, nil},
		{3, ptr(PriorityInformational)},
		{4, ptr(PriorityInformational)},
		{5, ptr(PriorityLow)},
		{6, ptr(PriorityLow)},
		{7, ptr(PriorityModerate)},
		{8, ptr(PriorityModerate)},
		{9, ptr(PriorityHigh)},
		{10, ptr(PriorityHigh)},
		{11, ptr(PriorityCritical)},
		{15, ptr(PriorityCritical)},
	}

	for _, c := range cases {
		got := rule.Calculate(issuesOfCount(c.count), now)
		if c.want == nil {
			assert.Nil(t, got, "count=%d", c.count)
		} else {
			require.NotNil(t, got, "count=%d", c.count)
			assert.Equal(t, *c.want, *got, "count=%d", c.count)
		}
	}
}

func issuesWithValue(key string, baseValue int) []store.Issue {
	issues := make([]store.Issue, 5)
	for i := range issues {
		issues[i] = store.Issue{
			ID:      int64(i),
			ModelID: fmt.Sprintf("%d", i),
			Data:    map[string]any{"id": i, key: baseValue + i},
		}
	}
	return issues
}

func TestValueRule_GreaterThan(t *testing.T) {
	now := time.Now()
	levels := PriorityLevels{
		PriorityInformational: 10,
		PriorityLow:           20,
		PriorityModerate:      30,
		PriorityHigh:          40,
		PriorityCritical:      50,
	}
	rule := ValueRule{ValueKey: "value", Operation: OperationGreaterThan, Levels: levels}

	cases := []struct {
		base int
		want *Priority
	}{
		{0, nil},
		{6, nil},
		{7, ptr(PriorityInformational)},
		{16, ptr(PriorityInformational)},
		{17, ptr(PriorityLow)},
		{26, ptr(PriorityLow)},
		{27, ptr(PriorityModerate)},
		{36, ptr(PriorityModerate)},
		{37, ptr(PriorityHigh)},
		{46, ptr(PriorityHigh)},
		{47, ptr(PriorityCritical)},
		{120, ptr(PriorityCritical)},
	}

	for _, c := range cases {
		got := rule.Calculate(issuesWithValue("value", c.base), now)
		if c.want == nil {
			assert.Nil(t, got, "base=%d", c.base)
		} else {
			require.NotNil(t, got, "base=%d", c.base)
			assert.Equal(t, *c.want, *got, "base=%d", c.base)
		}
	}
}

func TestValueRule_LesserThan(t *testing.T) {
	now := time.Now()
	levels := PriorityLevels{
		PriorityInformational: 50,
		PriorityLow:           40,
		PriorityModerate:      30,
		PriorityHigh:          20,
		PriorityCritical:      10,
	}
	rule := ValueRule{ValueKey: "other_value", Operation: OperationLesserThan, Levels: levels}

	cases := []struct {
		base int
		want *Priority
	}{
		{0, ptr(PriorityCritical)},
		{6, ptr(PriorityCritical)},
		{7, ptr(PriorityCritical)},
		{16, ptr(PriorityHigh)},
		{17, ptr(PriorityHigh)},
		{26, ptr(PriorityModerate)},
		{27, ptr(PriorityModerate)},
		{36, ptr(PriorityLow)},
		{37, ptr(PriorityLow)},
		{46, ptr(PriorityInformational)},
		{49, ptr(PriorityInformational)},
		{50, nil},
		{120, nil},
	}

	for _, c := range cases {
		got := rule.Calculate(issuesWithValue("other_value", c.base), now)
		if c.want == nil {
			assert.Nil(t, got, "base=%d", c.base)
		} else {
			require.NotNil(t, got, "base=%d", c.base)
			assert.Equal(t, *c.want, *got, "base=%d", c.base)
		}
	}
}

func TestCalculatePriority_DispatchesToRule(t *testing.T) {
	now := time.Now()
	issues := issuesOfCount(11)
	rule := CountRule{Levels: PriorityLevels{PriorityCritical: 10}}

	got := CalculatePriority(rule, issues, now)
	require.NotNil(t, got)
	assert.Equal(t, PriorityCritical, *got)
}

func TestCalculatePriority_NilRuleIsNoPriority(t *testing.T) {
	assert.Nil(t, CalculatePriority(nil, issuesOfCount(100), time.Now()))
}

func ptr[T any](v T) *T { return &v }
