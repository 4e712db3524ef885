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
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchml/stitch/container/models"
	"github.com/stitchml/stitch/container/serving"
	"github.com/stitchml/stitch/internal/sterrors"
	"github.com/stitchml/stitch/pkg/objectstorage"
)

// writeModelDir lays down a bundle whose weights vote for the second label
// on bright images.
func writeModelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	bundle := &models.Bundle{
		Arch:      "logit8",
		Labels:    []string{"coat", "tee"},
		ImageSize: 2,
		Model: &models.LogisticRegression{
			Fitted:  true,
			Bias:    -8,
			Weights: []float64{4, 4, 4, 4},
		},
	}
	require.NoError(t, bundle.Save(dir))
	return dir
}

func encodeJPEG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestDriver_DeployAndPredict(t *testing.T) {
	d, err := NewDriver(t.TempDir())
	require.NoError(t, err)

	endpoint, err := d.Deploy(context.Background(), DeploySpec{
		BaseName: "garments-endpoint",
		Model:    writeModelDir(t),
	})
	require.NoError(t, err)
	defer func() {
		if endpoint.State() != EndpointStateDeleted {
			assert.NoError(t, d.Delete(context.Background(), endpoint.Name))
		}
	}()

	assert.Equal(t, EndpointStateServing, endpoint.State())
	assert.Regexp(t, `^garments-endpoint-\d{8}-\d{6}$`, endpoint.Name)
	assert.NotEmpty(t, endpoint.Addr)

	p := NewPredictor(endpoint.Addr, serving.MediaTypeJPEG)
	prediction, err := p.Predict(context.Background(), encodeJPEG(t, 240))
	require.NoError(t, err)
	assert.Equal(t, "tee", prediction.Class)
	assert.Greater(t, prediction.Confidence, 0.5)

	prediction, err = p.Predict(context.Background(), encodeJPEG(t, 10))
	require.NoError(t, err)
	assert.Equal(t, "coat", prediction.Class)
}

// A bad payload gets an error answer but never takes the endpoint down.
func TestDriver_EndpointSurvivesBadPayload(t *testing.T) {
	d, err := NewDriver(t.TempDir())
	require.NoError(t, err)

	endpoint, err := d.Deploy(context.Background(), DeploySpec{
		BaseName: "garments-endpoint",
		Model:    writeModelDir(t),
	})
	require.NoError(t, err)
	defer d.Delete(context.Background(), endpoint.Name)

	p := NewPredictor(endpoint.Addr, serving.MediaTypeJPEG)
	_, err = p.Predict(context.Background(), []byte("not an image"))
	assert.Error(t, err)
	assert.True(t, sterrors.IsKind(err, sterrors.KindPayload))
	assert.Equal(t, EndpointStateServing, endpoint.State())

	_, err = p.Predict(context.Background(), encodeJPEG(t, 240))
	assert.NoError(t, err)
}

func TestDriver_DeployFailures(t *testing.T) {
	tests := []struct {
		name string
		spec func(t *testing.T) DeploySpec
	}{
		{
			name: "missing base name",
			spec: func(t *testing.T) DeploySpec {
				return DeploySpec{Model: writeModelDir(t)}
			},
		},
		{
			name: "missing model",
			spec: func(t *testing.T) DeploySpec {
				return DeploySpec{BaseName: "garments-endpoint"}
			},
		},
		{
			name: "model directory does not exist",
			spec: func(t *testing.T) DeploySpec {
				return DeploySpec{BaseName: "garments-endpoint", Model: filepath.Join(t.TempDir(), "missing")}
			},
		},
		{
			name: "model directory holds no bundle",
			spec: func(t *testing.T) DeploySpec {
				return DeploySpec{BaseName: "garments-endpoint", Model: t.TempDir()}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := NewDriver(t.TempDir())
			require.NoError(t, err)

			_, err = d.Deploy(context.Background(), tc.spec(t))
			assert.Error(t, err)
			assert.Empty(t, d.Endpoints())
		})
	}
}

func TestDriver_DeployDuplicateName(t *testing.T) {
	d, err := NewDriver(t.TempDir(), WithEndpointNamer(func(baseName string) string {
		return baseName + "-20230401-120000"
	}))
	require.NoError(t, err)

	spec := DeploySpec{BaseName: "garments-endpoint", Model: writeModelDir(t)}
	endpoint, err := d.Deploy(context.Background(), spec)
	require.NoError(t, err)
	defer d.Delete(context.Background(), endpoint.Name)

	_, err = d.Deploy(context.Background(), spec)
	assert.Error(t, err)
	assert.True(t, sterrors.IsKind(err, sterrors.KindProvisioning))
}

func TestDriver_Delete(t *testing.T) {
	d, err := NewDriver(t.TempDir())
	require.NoError(t, err)

	endpoint, err := d.Deploy(context.Background(), DeploySpec{
		BaseName: "garments-endpoint",
		Model:    writeModelDir(t),
	})
	require.NoError(t, err)
	addr := endpoint.Addr

	assert.NoError(t, d.Delete(context.Background(), endpoint.Name))
	assert.Equal(t, EndpointStateDeleted, endpoint.State())
	assert.Empty(t, d.Endpoints())

	// the listener is gone, new invocations cannot connect
	_, err = http.Get("http://" + addr + "/healthy")
	assert.Error(t, err)

	// deleting again reports the endpoint as unknown
	err = d.Delete(context.Background(), endpoint.Name)
	assert.Error(t, err)
	assert.True(t, sterrors.IsKind(err, sterrors.KindProvisioning))
}

func TestDriver_DeployFromStore(t *testing.T) {
	storeDir := t.TempDir()
	store, err := objectstorage.New(objectstorage.ServiceNameLocal, "", storeDir, "", "")
	require.NoError(t, err)

	// upload a bundle under a job prefix
	modelDir := writeModelDir(t)
	data, err := os.ReadFile(filepath.Join(modelDir, "logit8.json"))
	require.NoError(t, err)
	require.NoError(t, store.CreateObject(context.Background(), "artifacts", "jobs/garments-train-20230401-120000/model/logit8.json", "", bytes.NewReader(data)))

	d, err := NewDriver(t.TempDir(), WithObjectStorage(store, "artifacts"))
	require.NoError(t, err)

	endpoint, err := d.Deploy(context.Background(), DeploySpec{
		BaseName: "garments-endpoint",
		Model:    "store://jobs/garments-train-20230401-120000/model",
	})
	require.NoError(t, err)
	defer d.Delete(context.Background(), endpoint.Name)

	p := NewPredictor(endpoint.Addr, serving.MediaTypeJPEG)
	prediction, err := p.Predict(context.Background(), encodeJPEG(t, 240))
	require.NoError(t, err)
	assert.Equal(t, "tee", prediction.Class)
}
