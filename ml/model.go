package ml

// Example 一条带标签的文本样本
type Example struct {
	Text  string `json:"text"`
	Label int    `json:"label"`
}

// Prediction 单条文本的推理结果
type Prediction struct {
	Text  string    `json:"text"`
	Label int       `json:"pred"`
	Probs []float64 `json:"probs"`
}

// Learner 消费批次并执行一次增量训练
type Learner interface {
	TrainBatch(examples []Example) (float64, error)
	Save(dir string) error
}

// Scorer 对文本做批量推理
type Scorer interface {
	Predict(texts []string) ([]Prediction, error)
}
