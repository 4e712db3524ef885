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

package trainer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/atomic"

	"github.com/stitchml/stitch/container/config"
	logger "github.com/stitchml/stitch/internal/stlog"
)

const (
	// JobStateSubmitted is job accepted but not launched.
	JobStateSubmitted = "submitted"

	// JobStateRunning is job process launched.
	JobStateRunning = "running"

	// JobStateSucceeded is job finished with a model artifact.
	JobStateSucceeded = "succeeded"

	// JobStateFailed is job finished without a usable artifact.
	JobStateFailed = "failed"
)

const (
	// JobEventRun is job launched.
	JobEventRun = "run"

	// JobEventSucceed is job succeeded.
	JobEventSucceed = "succeed"

	// JobEventFail is job failed.
	JobEventFail = "fail"
)

// Job is a single training attempt. The name is unique per submission, the
// attempt id identifies the launched process.
type Job struct {
	// Name is the timestamped, unique job name.
	Name string

	// BaseName is the name the job was submitted under.
	BaseName string

	// AttemptID is the id of this attempt.
	AttemptID string

	// Hyperparameters are the process arguments of the attempt.
	Hyperparameters config.HyperparameterSet

	// Job state machine.
	FSM *fsm.FSM

	// CreatedAt is job create time.
	CreatedAt *atomic.Time

	// UpdatedAt is job update time.
	UpdatedAt *atomic.Time

	// failure holds the terminal error of a failed job.
	failure atomic.Error

	// done closes when the job reaches a terminal state.
	done chan struct{}

	// Job log.
	Log *logger.SugaredLoggerOnWith
}

// NewJob returns a submitted job.
func NewJob(name, baseName string, hyperparameters config.HyperparameterSet) *Job {
	attemptID := uuid.NewString()
	j := &Job{
		Name:            name,
		BaseName:        baseName,
		AttemptID:       attemptID,
		Hyperparameters: hyperparameters,
		CreatedAt:       atomic.NewTime(time.Now()),
		UpdatedAt:       atomic.NewTime(time.Now()),
		done:            make(chan struct{}),
		Log:             logger.WithJob(name, attemptID),
	}

	// Initialize state machine.
	j.FSM = fsm.NewFSM(
		JobStateSubmitted,
		fsm.Events{
			{Name: JobEventRun, Src: []string{JobStateSubmitted}, Dst: JobStateRunning},
			{Name: JobEventSucceed, Src: []string{JobStateRunning}, Dst: JobStateSucceeded},
			{Name: JobEventFail, Src: []string{JobStateSubmitted, JobStateRunning}, Dst: JobStateFailed},
		},
		fsm.Callbacks{
			JobEventRun: func(e *fsm.Event) {
				j.UpdatedAt.Store(time.Now())
				j.Log.Infof("job state is %s", e.FSM.Current())
			},
			JobEventSucceed: func(e *fsm.Event) {
				j.UpdatedAt.Store(time.Now())
				close(j.done)
				j.Log.Infof("job state is %s", e.FSM.Current())
			},
			JobEventFail: func(e *fsm.Event) {
				j.UpdatedAt.Store(time.Now())
				close(j.done)
				j.Log.Infof("job state is %s", e.FSM.Current())
			},
		},
	)

	return j
}

// State returns the current lifecycle state.
func (j *Job) State() string {
	return j.FSM.Current()
}

// Err returns the terminal error of a failed job, nil otherwise.
func (j *Job) Err() error {
	return j.failure.Load()
}

// Wait blocks until the job reaches a terminal state or the context ends.
// It returns the job's terminal error.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-j.done:
		return j.failure.Load()
	}
}

func (j *Job) run() error {
	return j.FSM.Event(JobEventRun)
}

func (j *Job) succeed() error {
	return j.FSM.Event(JobEventSucceed)
}

func (j *Job) fail(cause error) error {
	j.failure.Store(cause)
	return j.FSM.Event(JobEventFail)
}
