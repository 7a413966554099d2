package ml

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
)

const (
	defaultDim    = 4096
	minLabelCount = 2
	artifactName  = "model.json"
)

// TextClassifier 哈希词袋+softmax的线性文本分类器
type TextClassifier struct {
	Name    string      `json:"model"`
	Tok     Tokenizer   `json:"tokenizer"`
	LR      float64     `json:"lr"`
	Weights [][]float64 `json:"weights"` // [label][dim+1]，末位是偏置
	Steps   int64       `json:"steps"`
}

// NewTextClassifier 创建未训练的分类器
func NewTextClassifier(name string, lr float64, maxLength int) *TextClassifier {
	c := &TextClassifier{
		Name: name,
		Tok:  Tokenizer{Dim: defaultDim, MaxLength: maxLength},
		LR:   lr,
	}
	c.ensureLabels(minLabelCount)
	return c
}

// TrainBatch 对一个批次执行一步SGD，返回平均交叉熵损失
func (c *TextClassifier) TrainBatch(examples []Example) (float64, error) {
	if len(examples) == 0 {
		return 0, errors.New("empty batch")
	}

	maxLabel := 0
	for _, ex := range examples {
		if ex.Label < 0 {
			return 0, errors.New("negative label")
		}
		if ex.Label > maxLabel {
			maxLabel = ex.Label
		}
	}
	c.ensureLabels(maxLabel + 1)

	totalLoss := 0.0
	for _, ex := range examples {
		features := c.Tok.Features(ex.Text)
		probs := c.forward(features)

		p := probs[ex.Label]
		if p < 1e-12 {
			p = 1e-12
		}
		totalLoss += -math.Log(p)

		// 梯度下降：grad = p(c) - 1{c==label}
		for label := range c.Weights {
			grad := probs[label]
			if label == ex.Label {
				grad -= 1
			}
			row := c.Weights[label]
			for idx, count := range features {
				row[idx] -= c.LR * grad * count
			}
			row[c.Tok.Dim] -= c.LR * grad
		}
		c.Steps++
	}

	return totalLoss / float64(len(examples)), nil
}

// Predict 返回每条文本的预测标签和完整概率分布
func (c *TextClassifier) Predict(texts []string) ([]Prediction, error) {
	if len(c.Weights) == 0 {
		return nil, errors.New("model not trained")
	}

	results := make([]Prediction, 0, len(texts))
	for _, text := range texts {
		probs := c.forward(c.Tok.Features(text))
		best := 0
		for label, p := range probs {
			if p > probs[best] {
				best = label
			}
		}
		results = append(results, Prediction{Text: text, Label: best, Probs: probs})
	}
	return results, nil
}

// Save 把模型写入目录下的model.json
func (c *TextClassifier) Save(dir string) error {
	if len(c.Weights) == 0 {
		return errors.New("model not trained")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, artifactName), payload, 0o600)
}

// LoadTextClassifier 从目录加载模型
func LoadTextClassifier(dir string) (*TextClassifier, error) {
	payload, err := os.ReadFile(filepath.Join(dir, artifactName))
	if err != nil {
		return nil, err
	}
	var c TextClassifier
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, err
	}
	if c.Tok.Dim <= 0 {
		return nil, errors.New("invalid model artifact")
	}
	return &c, nil
}

func (c *TextClassifier) forward(features map[int]float64) []float64 {
	logits := make([]float64, len(c.Weights))
	maxLogit := math.Inf(-1)
	for label, row := range c.Weights {
		z := row[c.Tok.Dim]
		for idx, count := range features {
			z += row[idx] * count
		}
		logits[label] = z
		if z > maxLogit {
			maxLogit = z
		}
	}

	sum := 0.0
	for label, z := range logits {
		logits[label] = math.Exp(z - maxLogit)
		sum += logits[label]
	}
	for label := range logits {
		logits[label] /= sum
	}
	return logits
}

func (c *TextClassifier) ensureLabels(n int) {
	if n < minLabelCount {
		n = minLabelCount
	}
	for len(c.Weights) < n {
		c.Weights = append(c.Weights, make([]float64, c.Tok.Dim+1))
	}
}
