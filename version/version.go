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
package version

import (
	"fmt"
	"runtime"
)

const (
	Major      = "0"
	Minor      = "1"
	GitVersion = "v0.1.0"
)

var (
	GoVersion = runtime.Version()
	Platform  = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
)

// Version returns the full version block.
func Version() string {
	return fmt.Sprintf("Major: %s, Minor: %s, GitVersion: %s, GoVersion: %s, Platform: %s",
		Major, Minor, GitVersion, GoVersion, Platform)
}
