/*
 *     Copyright 2023 The Stitch Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package idgen

import (
	"fmt"
	"time"
)

const (
	// NameTimeLayout is the second-resolution timestamp appended to base
	// names. Sequential submissions under the same base collide only within
	// the same second, and the drivers reject reused names outright.
	NameTimeLayout = "20060102-150405"
)

// JobName generates a unique, human-readable training job name.
func JobName(baseName string) string {
	return fmt.Sprintf("%s-%s", baseName, time.Now().Format(NameTimeLayout))
}

// EndpointName generates a unique, human-readable endpoint name.
func EndpointName(baseName string) string {
	return fmt.Sprintf("%s-%s", baseName, time.Now().Format(NameTimeLayout))
}
