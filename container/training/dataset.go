package training

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/sjwhitworth/golearn/base"

	"github.com/stitchml/stitch/internal/sterrors"
	logger "github.com/stitchml/stitch/internal/stlog"
	"github.com/stitchml/stitch/pkg/imageutil"
)

// Dataset holds the instances loaded from a channel directory together with
// the label names, ordered to match the class values 0 and 1.
type Dataset struct {
	Instances *base.DenseInstances
	Labels    []string
}

// LoadDataset reads a two-label image directory layout, one subdirectory per
// label, and pools every decodable image into an imageSize x imageSize
// feature row. Images that fail to decode are skipped with a warning rather
// than failing the whole run.
func LoadDataset(dir string, imageSize int) (*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, sterrors.Provisioningf("read channel directory %s: %v", dir, err)
	}

	var labels []string
	for _, entry := range entries {
		if entry.IsDir() {
			labels = append(labels, entry.Name())
		}
	}
	sort.Strings(labels)
	if len(labels) != 2 {
		return nil, sterrors.Provisioningf("channel directory %s holds %d label directories, want 2", dir, len(labels))
	}

	type sample struct {
		features []float64
		class    float64
	}
	var samples []sample
	for classValue, label := range labels {
		labelDir := filepath.Join(dir, label)
		files, err := os.ReadDir(labelDir)
		if err != nil {
			return nil, sterrors.Provisioningf("read label directory %s: %v", labelDir, err)
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			path := filepath.Join(labelDir, file.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, sterrors.Provisioningf("read image %s: %v", path, err)
			}

			img, err := imageutil.Decode(data)
			if err != nil {
				logger.Warnf("skip undecodable image %s: %v", path, err)
				continue
			}
			samples = append(samples, sample{
				features: imageutil.Features(img, imageSize),
				class:    float64(classValue),
			})
		}
	}
	if len(samples) == 0 {
		return nil, sterrors.Provisioningf("channel directory %s holds no decodable images", dir)
	}

	featureCount := imageSize * imageSize
	inst := base.NewDenseInstances()
	attrSpecs := make([]base.AttributeSpec, featureCount)
	for i := 0; i < featureCount; i++ {
		attrSpecs[i] = inst.AddAttribute(base.NewFloatAttribute(featureName(i)))
	}
	clsAttr := base.NewFloatAttribute("label")
	clsSpec := inst.AddAttribute(clsAttr)
	if err := inst.AddClassAttribute(clsAttr); err != nil {
		return nil, err
	}
	if err := inst.Extend(len(samples)); err != nil {
		return nil, err
	}

	for row, s := range samples {
		for col, v := range s.features {
			inst.Set(attrSpecs[col], row, base.PackFloatToBytes(v))
		}
		inst.Set(clsSpec, row, base.PackFloatToBytes(s.class))
	}

	logger.Infof("loaded %d samples with labels %v from %s", len(samples), labels, dir)
	return &Dataset{Instances: inst, Labels: labels}, nil
}

func featureName(i int) string {
	return "px" + strconv.Itoa(i)
}
