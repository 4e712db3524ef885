package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stitchml/stitch/internal/sterrors"
)

func TestBundle_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	bundle := &Bundle{
		Arch:      "logit8",
		Labels:    []string{"jacket", "shirt"},
		ImageSize: 8,
		Model:     fitLogisticRegression(t, 50),
	}
	assert.NoError(t, bundle.Save(dir))

	_, err := os.Stat(filepath.Join(dir, "logit8.json"))
	assert.NoError(t, err)

	restored, err := LoadBundle(dir)
	assert.NoError(t, err)
	assert.Equal(t, "logit8", restored.Arch)
	assert.Equal(t, []string{"jacket", "shirt"}, restored.Labels)
	assert.Equal(t, 8, restored.ImageSize)
	assert.True(t, restored.Model.Fitted)
}

func TestLoadBundle_Errors(t *testing.T) {
	tests := []struct {
		name string
		mock func(t *testing.T) string
	}{
		{
			name: "empty directory",
			mock: func(t *testing.T) string {
				return t.TempDir()
			},
		},
		{
			name: "multiple model files",
			mock: func(t *testing.T) string {
				dir := t.TempDir()
				assert.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0644))
				assert.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte("{}"), 0644))
				return dir
			},
		},
		{
			name: "unfitted model",
			mock: func(t *testing.T) string {
				dir := t.TempDir()
				bundle := &Bundle{
					Arch:      "logit8",
					Labels:    []string{"jacket", "shirt"},
					ImageSize: 8,
					Model:     NewLogisticRegression(),
				}
				assert.NoError(t, bundle.Save(dir))
				return dir
			},
		},
		{
			name: "corrupt payload",
			mock: func(t *testing.T) string {
				dir := t.TempDir()
				assert.NoError(t, os.WriteFile(filepath.Join(dir, "logit8.json"), []byte("not json"), 0644))
				return dir
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadBundle(tc.mock(t))
			assert.Error(t, err)
			assert.True(t, sterrors.IsKind(err, sterrors.KindModelLoad))
		})
	}
}
