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

package predictor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEndpoint(t *testing.T) {
	e := NewEndpoint("garments-endpoint-20230401-120000", "garments-endpoint")
	assert.Equal(t, EndpointStateCreated, e.State())
	assert.Equal(t, "garments-endpoint", e.BaseName)
	assert.Empty(t, e.Addr)
}

func TestEndpoint_Transitions(t *testing.T) {
	tests := []struct {
		name   string
		mock   func(t *testing.T, e *Endpoint)
		expect func(t *testing.T, e *Endpoint)
	}{
		{
			name: "warm then serve",
			mock: func(t *testing.T, e *Endpoint) {
				assert.NoError(t, e.FSM.Event(EndpointEventWarm))
				assert.NoError(t, e.FSM.Event(EndpointEventServe))
			},
			expect: func(t *testing.T, e *Endpoint) {
				assert.Equal(t, EndpointStateServing, e.State())
			},
		},
		{
			name: "serving drains before deletion",
			mock: func(t *testing.T, e *Endpoint) {
				assert.NoError(t, e.FSM.Event(EndpointEventWarm))
				assert.NoError(t, e.FSM.Event(EndpointEventServe))
				assert.NoError(t, e.FSM.Event(EndpointEventDrain))
				assert.NoError(t, e.FSM.Event(EndpointEventDelete))
			},
			expect: func(t *testing.T, e *Endpoint) {
				assert.Equal(t, EndpointStateDeleted, e.State())
			},
		},
		{
			name: "delete while warming",
			mock: func(t *testing.T, e *Endpoint) {
				assert.NoError(t, e.FSM.Event(EndpointEventWarm))
				assert.NoError(t, e.FSM.Event(EndpointEventDelete))
			},
			expect: func(t *testing.T, e *Endpoint) {
				assert.Equal(t, EndpointStateDeleted, e.State())
			},
		},
		{
			name: "delete before warming",
			mock: func(t *testing.T, e *Endpoint) {
				assert.NoError(t, e.FSM.Event(EndpointEventDelete))
			},
			expect: func(t *testing.T, e *Endpoint) {
				assert.Equal(t, EndpointStateDeleted, e.State())
			},
		},
		{
			name: "serve without warming is rejected",
			mock: func(t *testing.T, e *Endpoint) {
				assert.Error(t, e.FSM.Event(EndpointEventServe))
			},
			expect: func(t *testing.T, e *Endpoint) {
				assert.Equal(t, EndpointStateCreated, e.State())
			},
		},
		{
			name: "serving cannot be deleted without draining",
			mock: func(t *testing.T, e *Endpoint) {
				assert.NoError(t, e.FSM.Event(EndpointEventWarm))
				assert.NoError(t, e.FSM.Event(EndpointEventServe))
				assert.Error(t, e.FSM.Event(EndpointEventDelete))
			},
			expect: func(t *testing.T, e *Endpoint) {
				assert.Equal(t, EndpointStateServing, e.State())
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEndpoint("garments-endpoint-20230401-120000", "garments-endpoint")
			tc.mock(t, e)
			tc.expect(t, e)
		})
	}
}

func TestEndpoint_Shutdown(t *testing.T) {
	t.Run("shutdown from serving drains first", func(t *testing.T) {
		e := NewEndpoint("garments-endpoint-20230401-120000", "garments-endpoint")
		assert.NoError(t, e.FSM.Event(EndpointEventWarm))
		assert.NoError(t, e.FSM.Event(EndpointEventServe))
		assert.NoError(t, e.Shutdown(context.Background()))
		assert.Equal(t, EndpointStateDeleted, e.State())
	})

	t.Run("shutdown from created", func(t *testing.T) {
		e := NewEndpoint("garments-endpoint-20230401-120000", "garments-endpoint")
		assert.NoError(t, e.Shutdown(context.Background()))
		assert.Equal(t, EndpointStateDeleted, e.State())
	})

	t.Run("shutdown twice is rejected", func(t *testing.T) {
		e := NewEndpoint("garments-endpoint-20230401-120000", "garments-endpoint")
		assert.NoError(t, e.Shutdown(context.Background()))
		assert.Error(t, e.Shutdown(context.Background()))
	})
}
