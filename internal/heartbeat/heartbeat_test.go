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

package heartbeat

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGauge struct {
	mu   sync.Mutex
	last float64
	sets int
}

func (g *fakeGauge) SetHeartbeatLatency(seconds float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = seconds
	g.sets++
}

func (g *fakeGauge) value() (float64, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.sets
}

func TestMeanLatency_InsufficientSamplesReturnsExpected(t *testing.T) {
	m := New(100*time.Millisecond, zerolog.Nop(), nil)
	assert.Equal(t, 100*time.Millisecond, m.meanLatency())

	m.wake(time.Now())
	assert.Equal(t, 100*time.Millisecond, m.meanLatency())
}

func TestMeanLatency_ComputesAverageInterval(t *testing.T) {
	m := New(50*time.Millisecond, zerolog.Nop(), nil)
	base := time.Now()

	for i := 0; i < 5; i++ {
		m.wake(base.Add(time.Duration(i) * 50 * time.Millisecond))
	}

	assert.Equal(t, 50*time.Millisecond, m.meanLatency())
}

func TestMeanLatency_RingBufferWrapsAfterTenSamples(t *testing.T) {
	m := New(10*time.Millisecond, zerolog.Nop(), nil)
	base := time.Now()

	// Feed 15 evenly spaced wakes; only the last 10 should inform the mean.
	for i := 0; i < 15; i++ {
		m.wake(base.Add(time.Duration(i) * 10 * time.Millisecond))
	}

	assert.Equal(t, 10*time.Millisecond, m.meanLatency())
	assert.Equal(t, ringSize, m.ringLen)
}

func TestWake_PublishesGauge(t *testing.T) {
	gauge := &fakeGauge{}
	m := New(10*time.Millisecond, zerolog.Nop(), gauge)

	base := time.Now()
	m.wake(base)
	m.wake(base.Add(10 * time.Millisecond))

	value, sets := gauge.value()
	require.Equal(t, 2, sets)
	assert.InDelta(t, 0.01, value, 0.001)
}

func TestWake_StallDetectionIsRateLimited(t *testing.T) {
	m := New(5*time.Millisecond, zerolog.Nop(), nil)
	base := time.Now()

	// First two wakes establish a stalled interval far beyond tolerance.
	m.wake(base)
	m.wake(base.Add(200 * time.Millisecond))
	firstAllowed := m.limiter.Allow()
	assert.False(t, firstAllowed, "limiter should already be exhausted by the warning emitted in wake()")
}
