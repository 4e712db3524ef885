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

package serving

import (
	"encoding/json"
	"errors"
	"mime"
	"strings"
	"sync"

	"github.com/stitchml/stitch/container/models"
	"github.com/stitchml/stitch/internal/sterrors"
	logger "github.com/stitchml/stitch/internal/stlog"
	"github.com/stitchml/stitch/pkg/imageutil"
)

// Media types the default codec speaks.
const (
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
	MediaTypeJSON = "application/json"
)

var (
	// ErrUnsupportedMediaType reports a request body media type the decoder
	// does not speak.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrUnsupportedAccept reports a response media type the encoder cannot
	// produce.
	ErrUnsupportedAccept = errors.New("unsupported accept type")
)

// Prediction is the answer for a single invocation.
type Prediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// LoadModelFunc restores the model bundle from the staged model directory.
type LoadModelFunc func(modelDir string) (*models.Bundle, error)

// DecodeRequestFunc turns a request body into a feature vector.
type DecodeRequestFunc func(body []byte, contentType string, imageSize int) ([]float64, error)

// PredictFunc scores a feature vector against the loaded bundle.
type PredictFunc func(bundle *models.Bundle, features []float64) (*Prediction, error)

// EncodeResponseFunc renders a prediction in the requested media type,
// returning the payload and its content type.
type EncodeResponseFunc func(prediction *Prediction, accept string) ([]byte, string, error)

// Handler wires the four inference operations together. Each operation has a
// default and can be overridden independently.
type Handler struct {
	modelDir string

	loadModel      LoadModelFunc
	decodeRequest  DecodeRequestFunc
	predict        PredictFunc
	encodeResponse EncodeResponseFunc

	mu     sync.RWMutex
	bundle *models.Bundle
}

// HandlerOption is a functional option for configuring the handler.
type HandlerOption func(h *Handler)

// WithLoadModel overrides the model loading operation.
func WithLoadModel(f LoadModelFunc) HandlerOption {
	return func(h *Handler) {
		h.loadModel = f
	}
}

// WithDecodeRequest overrides the request decoding operation.
func WithDecodeRequest(f DecodeRequestFunc) HandlerOption {
	return func(h *Handler) {
		h.decodeRequest = f
	}
}

// WithPredict overrides the prediction operation.
func WithPredict(f PredictFunc) HandlerOption {
	return func(h *Handler) {
		h.predict = f
	}
}

// WithEncodeResponse overrides the response encoding operation.
func WithEncodeResponse(f EncodeResponseFunc) HandlerOption {
	return func(h *Handler) {
		h.encodeResponse = f
	}
}

// NewHandler returns an inference handler over the given model directory.
func NewHandler(modelDir string, options ...HandlerOption) *Handler {
	h := &Handler{
		modelDir:       modelDir,
		loadModel:      models.LoadBundle,
		decodeRequest:  DefaultDecodeRequest,
		predict:        DefaultPredict,
		encodeResponse: DefaultEncodeResponse,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Warmup loads the model bundle. It must succeed before the handler can
// answer invocations and may be called again to reload.
func (h *Handler) Warmup() error {
	bundle, err := h.loadModel(h.modelDir)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.bundle = bundle
	h.mu.Unlock()
	logger.Infof("loaded model bundle %s with labels %v", bundle.Arch, bundle.Labels)
	return nil
}

// Ready reports whether a model bundle is loaded.
func (h *Handler) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bundle != nil
}

// Invoke answers a single inference request: decode, predict, encode. A bad
// payload never poisons the loaded model, the handler keeps serving.
func (h *Handler) Invoke(body []byte, contentType, accept string) ([]byte, string, error) {
	h.mu.RLock()
	bundle := h.bundle
	h.mu.RUnlock()
	if bundle == nil {
		return nil, "", sterrors.ModelLoadf("no model bundle loaded")
	}

	features, err := h.decodeRequest(body, contentType, bundle.ImageSize)
	if err != nil {
		return nil, "", err
	}

	prediction, err := h.predict(bundle, features)
	if err != nil {
		return nil, "", err
	}

	return h.encodeResponse(prediction, accept)
}

// DefaultDecodeRequest decodes a JPEG or PNG body into pooled features.
func DefaultDecodeRequest(body []byte, contentType string, imageSize int) ([]float64, error) {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	switch mediaType {
	case MediaTypeJPEG, MediaTypePNG:
	default:
		return nil, ErrUnsupportedMediaType
	}

	img, err := imageutil.Decode(body)
	if err != nil {
		return nil, sterrors.Payloadf("decode image: %v", err)
	}
	return imageutil.Features(img, imageSize), nil
}

// DefaultPredict scores the features and reports the winning label with the
// probability mass behind it.
func DefaultPredict(bundle *models.Bundle, features []float64) (*Prediction, error) {
	p, err := bundle.Model.Score(features)
	if err != nil {
		return nil, sterrors.Payloadf("score features: %v", err)
	}

	prediction := &Prediction{Class: bundle.Labels[1], Confidence: p}
	if p < 0.5 {
		prediction.Class = bundle.Labels[0]
		prediction.Confidence = 1 - p
	}
	return prediction, nil
}

// DefaultEncodeResponse renders the prediction as JSON. An absent or
// wildcard accept header means JSON as well.
func DefaultEncodeResponse(prediction *Prediction, accept string) ([]byte, string, error) {
	if !acceptsJSON(accept) {
		return nil, "", ErrUnsupportedAccept
	}

	data, err := json.Marshal(prediction)
	if err != nil {
		return nil, "", err
	}
	return data, MediaTypeJSON, nil
}

func acceptsJSON(accept string) bool {
	if accept == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(part)
		if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
			mediaType = strings.TrimSpace(mediaType[:idx])
		}
		switch mediaType {
		case MediaTypeJSON, "*/*", "application/*":
			return true
		}
	}
	return false
}
