package models

import (
	"encoding/json"
	"errors"
	"math"

	"github.com/mitchellh/mapstructure"
	"github.com/sjwhitworth/golearn/base"

	logger "github.com/stitchml/stitch/internal/stlog"
)

// LogisticRegression binary classification model struct.
type LogisticRegression struct {
	Fitted  bool                   `json:"fitted"`
	Bias    float64                `json:"bias"`
	Weights []float64              `json:"weights"`
	Attrs   []*base.FloatAttribute `json:"attrs"`
	Cls     *base.FloatAttribute   `json:"cls"`
}

// NewLogisticRegression return an instance of logistic regression model.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{Fitted: false}
}

// Fit runs one pass over the data provided, updating parameters per
// mini-batch. Call it once per epoch; the first call binds the attributes.
func (lr *LogisticRegression) Fit(inst base.FixedDataGrid, batchSize int, learningRate float64) error {
	_, rows := inst.Size()

	classAttrs := inst.AllClassAttributes()
	if len(classAttrs) != 1 {
		return errors.New("only 1 class variable is permitted")
	}
	classAttrSpecs := base.ResolveAttributes(inst, classAttrs)

	allAttrs := base.NonClassAttributes(inst)
	attrs := make([]base.Attribute, 0)
	for _, a := range allAttrs {
		if _, ok := a.(*base.FloatAttribute); ok {
			attrs = append(attrs, a)
		}
	}
	attrSpecs := base.ResolveAttributes(inst, attrs)

	if !lr.Fitted {
		lr.Weights = make([]float64, len(attrs))
		lr.Bias = 0
		lr.Attrs = make([]*base.FloatAttribute, len(attrs))
		for idx, a := range attrs {
			lr.Attrs[idx] = a.(*base.FloatAttribute)
		}
		lr.Cls = classAttrs[0].(*base.FloatAttribute)
		lr.Fitted = true
	}

	if len(lr.Weights) != len(attrs) {
		return errors.New("attribute count changed between fits")
	}

	if batchSize <= 0 {
		batchSize = 1
	}

	for start := 0; start < rows; start += batchSize {
		end := start + batchSize
		if end > rows {
			end = rows
		}

		gradBias := 0.0
		gradWeights := make([]float64, len(lr.Weights))
		for i := start; i < end; i++ {
			out := lr.Bias
			for j := range lr.Weights {
				out += base.UnpackBytesToFloat(inst.Get(attrSpecs[j], i)) * lr.Weights[j]
			}

			residual := base.UnpackBytesToFloat(inst.Get(classAttrSpecs[0], i)) - sigmoid(out)
			gradBias += residual
			for j := range gradWeights {
				gradWeights[j] += residual * base.UnpackBytesToFloat(inst.Get(attrSpecs[j], i))
			}
		}

		n := float64(end - start)
		lr.Bias += learningRate * gradBias / n
		for j := range lr.Weights {
			lr.Weights[j] += learningRate * gradWeights[j] / n
		}
	}

	return nil
}

// Predict use parameters of model to predict the data provided. The output
// vector holds the positive-class probability of each row.
func (lr *LogisticRegression) Predict(X base.FixedDataGrid) (base.FixedDataGrid, error) {
	if !lr.Fitted {
		logger.Info("no fitted model")
		return nil, errors.New("no fitted model")
	}

	ret := base.GeneratePredictionVector(X)
	attrs := make([]base.Attribute, len(lr.Attrs))
	for idx, a := range lr.Attrs {
		attrs[idx] = a
	}
	attrSpecs := base.ResolveAttributes(X, attrs)
	clsSpec, err := ret.GetAttribute(lr.Cls)
	if err != nil {
		logger.Infof("LogisticRegression error happens, error is %v", err)
		return nil, err
	}

	err = X.MapOverRows(attrSpecs, func(row [][]byte, i int) (bool, error) {
		var score = lr.Bias
		for j, r := range row {
			score += base.UnpackBytesToFloat(r) * lr.Weights[j]
		}

		ret.Set(clsSpec, i, base.PackFloatToBytes(sigmoid(score)))
		return true, nil
	})
	if err != nil {
		logger.Infof("LogisticRegression error happens, error is %v", err)
		return nil, err
	}
	return ret, nil
}

// Score returns the positive-class probability of a raw feature vector.
// Pure function over the fitted parameters, safe for concurrent callers.
func (lr *LogisticRegression) Score(features []float64) (float64, error) {
	if !lr.Fitted {
		return 0, errors.New("no fitted model")
	}

	if len(features) != len(lr.Weights) {
		return 0, errors.New("feature count does not match fitted model")
	}

	score := lr.Bias
	for j, f := range features {
		score += f * lr.Weights[j]
	}

	return sigmoid(score), nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func (lr *LogisticRegression) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"fitted":  lr.Fitted,
		"bias":    lr.Bias,
		"weights": lr.Weights,
		"attrs":   lr.marshalFloatAttributes(),
		"cls":     marshalFloatAttribute(lr.Cls),
	})
}

func marshalFloatAttribute(f *base.FloatAttribute) map[string]interface{} {
	return map[string]interface{}{
		"name":      f.Name,
		"precision": f.Precision,
	}
}

func (lr *LogisticRegression) marshalFloatAttributes() []map[string]interface{} {
	ans := make([]map[string]interface{}, len(lr.Attrs))
	for idx, attr := range lr.Attrs {
		ans[idx] = marshalFloatAttribute(attr)
	}
	return ans
}

func (lr *LogisticRegression) UnmarshalJSON(data []byte) error {
	var d map[string]interface{}
	err := json.Unmarshal(data, &d)
	if err != nil {
		return err
	}

	err = mapstructure.Decode(d, lr)
	if err != nil {
		return err
	}
	val, ok := d["weights"]
	if ok {
		var weights []float64
		err = mapstructure.Decode(val, &weights)
		if err != nil {
			return err
		}
		lr.Weights = weights
	}
	return nil
}
