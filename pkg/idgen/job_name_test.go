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
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobName(t *testing.T) {
	tests := []struct {
		name     string
		baseName string
		expect   func(t *testing.T, jobName string)
	}{
		{
			name:     "name combines base and timestamp",
			baseName: "garments-train",
			expect: func(t *testing.T, jobName string) {
				assert := assert.New(t)
				assert.True(strings.HasPrefix(jobName, "garments-train-"))
				assert.Regexp(regexp.MustCompile(`^garments-train-\d{8}-\d{6}$`), jobName)
			},
		},
		{
			name:     "empty base keeps timestamp suffix",
			baseName: "",
			expect: func(t *testing.T, jobName string) {
				assert := assert.New(t)
				assert.Regexp(regexp.MustCompile(`^-\d{8}-\d{6}$`), jobName)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.expect(t, JobName(tc.baseName))
		})
	}
}

func TestEndpointName(t *testing.T) {
	assert := assert.New(t)
	assert.Regexp(regexp.MustCompile(`^garments-serve-\d{8}-\d{6}$`), EndpointName("garments-serve"))
}
