package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/stitchml/stitch/internal/sterrors"
)

// DefaultArch is the architecture tag used when nothing else is configured.
const DefaultArch = "logit8"

// Bundle groups a fitted model with everything serving needs to answer
// requests: the class labels in attribute order and the feature grid size
// the images were pooled to. Persisted as a single <arch>.json file so the
// architecture survives round trips through the artifact store.
type Bundle struct {
	Arch      string              `json:"arch"`
	Labels    []string            `json:"labels"`
	ImageSize int                 `json:"image_size"`
	Model     *LogisticRegression `json:"model"`
}

// Save writes the bundle under dir as <arch>.json.
func (b *Bundle) Save(dir string) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, b.Arch+".json"), data, 0644)
}

// LoadBundle finds the bundle file under dir by extension and restores it.
// The architecture is taken from the file name rather than trusted from the
// payload, matching how the file was laid down by Save.
func LoadBundle(dir string) (*Bundle, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(matches) != 1 {
		return nil, sterrors.ModelLoadf("expected exactly one model file in %s, found %d", dir, len(matches))
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, sterrors.ModelLoadf("read model file: %v", err)
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, sterrors.ModelLoadf("decode model file: %v", err)
	}
	b.Arch = strings.TrimSuffix(filepath.Base(matches[0]), ".json")

	if b.Model == nil || !b.Model.Fitted {
		return nil, sterrors.ModelLoadf("model file %s holds no fitted model", matches[0])
	}
	if len(b.Labels) != 2 {
		return nil, sterrors.ModelLoadf("model file %s holds %d labels, want 2", matches[0], len(b.Labels))
	}
	return &b, nil
}
