/*
 * Copyright 2025 tomoncle.
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

package types

import "strings"

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// ParseEnum returns the member of values whose Name matches s, ignoring case
// and surrounding whitespace. Aliases map alternative spellings to a name.
func ParseEnum[E BaseEnum](values []E, s string, aliases map[string]string) (E, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	for _, v := range values {
		if v.IsValid() && v.Name() == key {
			return v, true
		}
	}
	var zero E
	return zero, false
}
