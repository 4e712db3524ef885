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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace of metrics.
	MetricsNamespace = "stitch"

	// TrainerMetricsName is the subsystem of trainer metrics.
	TrainerMetricsName = "trainer"
)

// Variables declared for metrics.
var (
	JobSubmittedCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: TrainerMetricsName,
		Name:      "job_submitted_total",
		Help:      "Counter of the number of submitted jobs.",
	})

	JobSubmittedFailureCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: TrainerMetricsName,
		Name:      "job_submitted_failure_total",
		Help:      "Counter of the number of rejected submissions.",
	})

	JobSucceededCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: TrainerMetricsName,
		Name:      "job_succeeded_total",
		Help:      "Counter of the number of jobs finished with an artifact.",
	})

	JobFailedCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: TrainerMetricsName,
		Name:      "job_failed_total",
		Help:      "Counter of the number of failed jobs.",
	})

	UploadArtifactCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: TrainerMetricsName,
		Name:      "upload_artifact_total",
		Help:      "Counter of the number of uploaded model artifacts.",
	})

	UploadArtifactFailureCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: TrainerMetricsName,
		Name:      "upload_artifact_failure_total",
		Help:      "Counter of the number of failed of the artifact uploads.",
	})
)
