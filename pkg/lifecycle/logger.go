/*
 * Copyright 2025 CamGrid Systems.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lifecycle

import (
	"github.com/rs/zerolog"
)

// componentLogger implements the logger.Logger interface without global state.
type componentLogger struct {
	logger zerolog.Logger
}

func (l *componentLogger) Trace() *zerolog.Event { return l.logger.Trace() }
func (l *componentLogger) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *componentLogger) Info() *zerolog.Event  { return l.logger.Info() }
func (l *componentLogger) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *componentLogger) Error() *zerolog.Event { return l.logger.Error() }
func (l *componentLogger) Fatal() *zerolog.Event { return l.logger.Fatal() }
func (l *componentLogger) Panic() *zerolog.Event { return l.logger.Panic() }
func (l *componentLogger) With() zerolog.Context { return l.logger.With() }

func (l *componentLogger) WithComponent(component string) zerolog.Logger {
	return l.logger.With().Str("component", component).Logger()
}

func (l *componentLogger) SetLevel(level zerolog.Level) {
	l.logger = l.logger.Level(level)
}

func (l *componentLogger) SetDebug(debug bool) {
	if debug {
		l.SetLevel(zerolog.DebugLevel)
	} else {
		l.SetLevel(zerolog.InfoLevel)
	}
}
