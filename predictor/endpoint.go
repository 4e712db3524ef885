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
	"net/http"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/atomic"

	logger "github.com/stitchml/stitch/internal/stlog"
)

const (
	// EndpointStateCreated is endpoint accepted but not warming yet.
	EndpointStateCreated = "created"

	// EndpointStateWarming is model loading in progress.
	EndpointStateWarming = "warming"

	// EndpointStateServing is endpoint answering invocations.
	EndpointStateServing = "serving"

	// EndpointStateDraining is endpoint refusing new work before removal.
	EndpointStateDraining = "draining"

	// EndpointStateDeleted is endpoint removed.
	EndpointStateDeleted = "deleted"
)

const (
	// EndpointEventWarm is model loading started.
	EndpointEventWarm = "warm"

	// EndpointEventServe is endpoint opened for traffic.
	EndpointEventServe = "serve"

	// EndpointEventDrain is endpoint closed for new traffic.
	EndpointEventDrain = "drain"

	// EndpointEventDelete is endpoint removed.
	EndpointEventDelete = "delete"
)

// Endpoint is a deployed model behind an HTTP surface. Deletion is explicit,
// an endpoint never disappears on its own.
type Endpoint struct {
	// Name is the timestamped, unique endpoint name.
	Name string

	// BaseName is the name the endpoint was deployed under.
	BaseName string

	// ModelDir is the staged model directory.
	ModelDir string

	// Addr is the listen address once serving.
	Addr string

	// Endpoint state machine.
	FSM *fsm.FSM

	// CreatedAt is endpoint create time.
	CreatedAt *atomic.Time

	// UpdatedAt is endpoint update time.
	UpdatedAt *atomic.Time

	// server is the running HTTP server, nil until serving.
	server *http.Server

	// Endpoint log.
	Log *logger.SugaredLoggerOnWith
}

// NewEndpoint returns a created endpoint.
func NewEndpoint(name, baseName string) *Endpoint {
	e := &Endpoint{
		Name:      name,
		BaseName:  baseName,
		CreatedAt: atomic.NewTime(time.Now()),
		UpdatedAt: atomic.NewTime(time.Now()),
		Log:       logger.WithEndpoint(name),
	}

	// Initialize state machine.
	e.FSM = fsm.NewFSM(
		EndpointStateCreated,
		fsm.Events{
			{Name: EndpointEventWarm, Src: []string{EndpointStateCreated}, Dst: EndpointStateWarming},
			{Name: EndpointEventServe, Src: []string{EndpointStateWarming}, Dst: EndpointStateServing},
			{Name: EndpointEventDrain, Src: []string{EndpointStateServing}, Dst: EndpointStateDraining},
			{Name: EndpointEventDelete, Src: []string{EndpointStateCreated, EndpointStateWarming, EndpointStateDraining}, Dst: EndpointStateDeleted},
		},
		fsm.Callbacks{
			EndpointEventWarm: func(e2 *fsm.Event) {
				e.UpdatedAt.Store(time.Now())
				e.Log.Infof("endpoint state is %s", e2.FSM.Current())
			},
			EndpointEventServe: func(e2 *fsm.Event) {
				e.UpdatedAt.Store(time.Now())
				e.Log.Infof("endpoint state is %s", e2.FSM.Current())
			},
			EndpointEventDrain: func(e2 *fsm.Event) {
				e.UpdatedAt.Store(time.Now())
				e.Log.Infof("endpoint state is %s", e2.FSM.Current())
			},
			EndpointEventDelete: func(e2 *fsm.Event) {
				e.UpdatedAt.Store(time.Now())
				e.Log.Infof("endpoint state is %s", e2.FSM.Current())
			},
		},
	)

	return e
}

// State returns the current lifecycle state.
func (e *Endpoint) State() string {
	return e.FSM.Current()
}

// Shutdown drains the endpoint, stops its server, and marks it deleted.
// In-flight requests get until the context ends to finish.
func (e *Endpoint) Shutdown(ctx context.Context) error {
	if e.State() == EndpointStateServing {
		if err := e.FSM.Event(EndpointEventDrain); err != nil {
			return err
		}
	}

	if e.server != nil {
		if err := e.server.Shutdown(ctx); err != nil {
			e.Log.Warnf("endpoint server shutdown: %v", err)
		}
		e.server = nil
	}

	return e.FSM.Event(EndpointEventDelete)
}
