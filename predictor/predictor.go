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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/stitchml/stitch/container/serving"
	"github.com/stitchml/stitch/internal/sterrors"
	"github.com/stitchml/stitch/pkg/idgen"
	"github.com/stitchml/stitch/pkg/objectstorage"
)

const (
	// DefaultListenAddr serves endpoints on a loopback ephemeral port.
	DefaultListenAddr = "127.0.0.1:0"

	// storePrefixScheme marks a model URI that points into the store.
	storePrefixScheme = "store://"
)

// DeploySpec describes a deployment. Model is either a local model
// directory or a store://<prefix> URI.
type DeploySpec struct {
	BaseName   string
	Model      string
	ListenAddr string
}

// Driver deploys model artifacts behind HTTP endpoints and tracks their
// lifecycle.
type Driver struct {
	workDir string
	store   objectstorage.ObjectStorage
	bucket  string

	// endpointName generates the unique endpoint name of a deployment.
	endpointName func(baseName string) string

	// endpoints maps the timestamped endpoint name to its Endpoint.
	endpoints sync.Map
}

// DriverOption is a functional option for configuring the driver.
type DriverOption func(d *Driver)

// WithObjectStorage sets the artifact store model prefixes are staged from.
func WithObjectStorage(store objectstorage.ObjectStorage, bucket string) DriverOption {
	return func(d *Driver) {
		d.store = store
		d.bucket = bucket
	}
}

// WithEndpointNamer overrides endpoint name generation.
func WithEndpointNamer(endpointName func(baseName string) string) DriverOption {
	return func(d *Driver) {
		d.endpointName = endpointName
	}
}

// NewDriver returns a driver staging models under workDir.
func NewDriver(workDir string, options ...DriverOption) (*Driver, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, err
	}

	d := &Driver{
		workDir:      workDir,
		endpointName: idgen.EndpointName,
	}
	for _, opt := range options {
		opt(d)
	}
	return d, nil
}

// Deploy stages the model, warms it, and opens the endpoint for traffic.
// The endpoint keeps serving until Delete is called, a failed deployment is
// torn down before returning.
func (d *Driver) Deploy(ctx context.Context, spec DeploySpec) (*Endpoint, error) {
	if spec.BaseName == "" {
		return nil, sterrors.Provisioningf("deployment requires a base name")
	}
	if spec.Model == "" {
		return nil, sterrors.Provisioningf("deployment requires a model")
	}

	name := d.endpointName(spec.BaseName)
	endpoint := NewEndpoint(name, spec.BaseName)
	if _, loaded := d.endpoints.LoadOrStore(name, endpoint); loaded {
		return nil, sterrors.Provisioningf("endpoint %s already exists", name)
	}

	if err := d.warmAndServe(ctx, endpoint, spec); err != nil {
		if derr := endpoint.Shutdown(ctx); derr != nil {
			endpoint.Log.Errorf("endpoint teardown failed: %v", derr)
		}
		d.endpoints.Delete(name)
		return nil, err
	}
	return endpoint, nil
}

func (d *Driver) warmAndServe(ctx context.Context, endpoint *Endpoint, spec DeploySpec) error {
	if err := endpoint.FSM.Event(EndpointEventWarm); err != nil {
		return err
	}

	modelDir, err := d.stageModel(ctx, endpoint, spec.Model)
	if err != nil {
		return err
	}
	endpoint.ModelDir = modelDir

	handler := serving.NewHandler(modelDir)
	if err := handler.Warmup(); err != nil {
		return err
	}

	listenAddr := spec.ListenAddr
	if listenAddr == "" {
		listenAddr = DefaultListenAddr
	}
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return sterrors.Provisioningf("listen on %s: %v", listenAddr, err)
	}

	endpoint.server = &http.Server{Handler: serving.NewRouter(handler, false)}
	go func() {
		if err := endpoint.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			endpoint.Log.Errorf("endpoint server exited: %v", err)
		}
	}()

	endpoint.Addr = listener.Addr().String()
	endpoint.Log.Infof("endpoint serving on %s with model %s", endpoint.Addr, modelDir)
	return endpoint.FSM.Event(EndpointEventServe)
}

func (d *Driver) stageModel(ctx context.Context, endpoint *Endpoint, model string) (string, error) {
	if !strings.HasPrefix(model, storePrefixScheme) {
		info, err := os.Stat(model)
		if err != nil || !info.IsDir() {
			return "", sterrors.Provisioningf("model directory %s is not usable", model)
		}
		return model, nil
	}

	if d.store == nil {
		return "", sterrors.Provisioningf("model %s needs an artifact store", model)
	}

	prefix := strings.TrimPrefix(model, storePrefixScheme)
	dir := filepath.Join(d.workDir, endpoint.Name, "model")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	meta, err := d.store.ListObjectMetadatas(ctx, d.bucket, prefix, "", 100)
	if err != nil {
		return "", sterrors.Provisioningf("list model prefix %s: %v", prefix, err)
	}
	if len(meta) == 0 {
		return "", sterrors.Provisioningf("model prefix %s holds no objects", prefix)
	}

	for _, m := range meta {
		rc, err := d.store.GetObject(ctx, d.bucket, m.Key)
		if err != nil {
			return "", sterrors.Provisioningf("fetch model object %s: %v", m.Key, err)
		}

		path := filepath.Join(dir, filepath.Base(m.Key))
		file, err := os.Create(path)
		if err != nil {
			rc.Close()
			return "", err
		}
		_, err = io.Copy(file, rc)
		rc.Close()
		file.Close()
		if err != nil {
			return "", err
		}
	}
	return dir, nil
}

// LoadEndpoint returns the endpoint of the given name.
func (d *Driver) LoadEndpoint(name string) (*Endpoint, bool) {
	v, ok := d.endpoints.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Endpoint), true
}

// Endpoints returns all live endpoints.
func (d *Driver) Endpoints() []*Endpoint {
	var endpoints []*Endpoint
	d.endpoints.Range(func(_, v any) bool {
		endpoints = append(endpoints, v.(*Endpoint))
		return true
	})
	return endpoints
}

// Delete drains and removes the endpoint of the given name.
func (d *Driver) Delete(ctx context.Context, name string) error {
	endpoint, ok := d.LoadEndpoint(name)
	if !ok {
		return sterrors.Provisioningf("endpoint %s not found", name)
	}

	if err := endpoint.Shutdown(ctx); err != nil {
		return err
	}
	d.endpoints.Delete(name)
	return nil
}

// Predictor answers predictions against a serving endpoint with a fixed
// request content type.
type Predictor struct {
	addr        string
	contentType string
	client      *http.Client
}

// NewPredictor returns a predictor for the given endpoint address.
func NewPredictor(addr, contentType string) *Predictor {
	return &Predictor{
		addr:        addr,
		contentType: contentType,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Predict posts the payload to the endpoint and decodes the prediction.
func (p *Predictor) Predict(ctx context.Context, payload []byte) (*serving.Prediction, error) {
	url := fmt.Sprintf("http://%s/invocations", p.addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", p.contentType)
	req.Header.Set("Accept", serving.MediaTypeJSON)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, sterrors.Payloadf("invocation returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var prediction serving.Prediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return nil, err
	}
	return &prediction, nil
}
