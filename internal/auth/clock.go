// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package auth

import "time"

// Clock abstracts time so tests can observe rejection delays without
// sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
