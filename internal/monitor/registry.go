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

import "sort"

type registryEntry struct {
	impl Impl
	opts Options
}

// StaticRegistry is the reference Registry: monitor implementations are
// registered once at process startup and never change at runtime (spec.md 9
// "statically registered plugins" re-architecture option). internal/loader
// resolves names against a StaticRegistry rather than compiling or loading
// code dynamically, since user-code sandboxing is an explicit Non-goal.
type StaticRegistry struct {
	entries map[string]registryEntry
}

// NewStaticRegistry creates an empty Registry. Callers register every
// compiled-in monitor implementation before starting the Controller or
// Executor; Register is not safe to call concurrently with Get/Names, so
// registration must finish before either role's Run loop starts.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{entries: make(map[string]registryEntry)}
}

func (r *StaticRegistry) Get(name string) (Impl, Options, bool) {
	e, ok := r.entries[name]
	if !ok {
		return nil, Options{}, false
	}
	return e.impl, e.opts, true
}

func (r *StaticRegistry) Register(name string, impl Impl, opts Options) {
	r.entries[name] = registryEntry{impl: impl, opts: opts}
}

func (r *StaticRegistry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
