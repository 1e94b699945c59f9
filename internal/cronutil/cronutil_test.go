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

package cronutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTriggered_NilLastExecutionIsAlwaysTriggered(t *testing.T) {
	triggered, err := IsTriggered("*/5 * * * *", "UTC", nil, time.Now())
	require.NoError(t, err)
	assert.True(t, triggered)
}

func TestIsTriggered_DueAndNotDue(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	lastExec := base
	notDue := base.Add(2 * time.Minute)
	due := base.Add(5 * time.Minute)

	triggered, err := IsTriggered("*/5 * * * *", "UTC", &lastExec, notDue)
	require.NoError(t, err)
	assert.False(t, triggered)

	triggered, err = IsTriggered("*/5 * * * *", "UTC", &lastExec, due)
	require.NoError(t, err)
	assert.True(t, triggered)
}

func TestIsTriggered_MonotonicInReferenceTime(t *testing.T) {
	lastExec := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	wasTriggered := false
	for i := 0; i <= 10; i++ {
		t2 := lastExec.Add(time.Duration(i) * time.Minute)
		triggered, err := IsTriggered("*/5 * * * *", "UTC", &lastExec, t2)
		require.NoError(t, err)

		if wasTriggered {
			assert.True(t, triggered, "is_triggered must not flip back to false as t advances")
		}
		wasTriggered = wasTriggered || triggered
	}
	assert.True(t, wasTriggered)
}

func TestIsTriggered_InvalidExpressionReturnsError(t *testing.T) {
	_, err := IsTriggered("not a cron expr", "UTC", nil, time.Now())
	assert.Error(t, err)
}

func TestTimeUntilNextTrigger_IsAlwaysPositive(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	d, err := TimeUntilNextTrigger("0 * * * *", "UTC", now)
	require.NoError(t, err)
	assert.Greater(t, d, time.Duration(0))
	assert.LessOrEqual(t, d, time.Hour)
}

func TestTimeUntilNextTrigger_ExactOnBoundaryStillPositive(t *testing.T) {
	// Reference time lands exactly on a scheduled minute; the next trigger
	// must be strictly in the future, not the same instant.
	onBoundary := time.Date(2026, 7, 31, 10, 5, 0, 0, time.UTC)
	d, err := TimeUntilNextTrigger("*/5 * * * *", "UTC", onBoundary)
	require.NoError(t, err)
	assert.Greater(t, d, time.Duration(0))
}

func TestTimeUntilNextTrigger_RespectsTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 23:30 UTC on 2026-07-31 is 19:30 in New York (EDT, UTC-4); the next
	// "0 0 * * *" (midnight local) trigger is 4h30m away in NY time, but
	// would be a different distance if evaluated in UTC.
	now := time.Date(2026, 7, 31, 23, 30, 0, 0, time.UTC)

	dUTC, err := TimeUntilNextTrigger("0 0 * * *", "UTC", now)
	require.NoError(t, err)

	dNY, err := TimeUntilNextTrigger("0 0 * * *", "America/New_York", now)
	require.NoError(t, err)

	assert.NotEqual(t, dUTC, dNY)

	nyNow := now.In(loc)
	assert.Equal(t, 0, nyNow.Add(dNY).Hour())
}

func TestIsTriggered_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	triggered, err := IsTriggered("*/5 * * * *", "Not/A_Zone", &base, base.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, triggered)
}
