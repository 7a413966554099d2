package trainer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"textstream/ml"
)

// ErrMalformedPayload 顶层载荷不是合法的{"examples":[...]}结构
var ErrMalformedPayload = errors.New("malformed payload")

type trainPayload struct {
	Examples []json.RawMessage `json:"examples"`
}

// ParsePayload 解析训练载荷。顶层结构非法时报错；
// 单条样本非法（text为空、label不是整数）时静默丢弃。
func ParsePayload(data []byte) ([]ml.Example, error) {
	var payload trainPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	examples := make([]ml.Example, 0, len(payload.Examples))
	for _, raw := range payload.Examples {
		if example, ok := parseExample(raw); ok {
			examples = append(examples, example)
		}
	}
	return examples, nil
}

func parseExample(raw json.RawMessage) (ml.Example, bool) {
	var entry struct {
		Text  string      `json:"text"`
		Label json.Number `json:"label"`
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&entry); err != nil {
		return ml.Example{}, false
	}
	if entry.Text == "" {
		return ml.Example{}, false
	}

	label, err := entry.Label.Int64()
	if err != nil {
		// 允许1.0这类可取整的浮点标签
		f, ferr := entry.Label.Float64()
		if ferr != nil || f != math.Trunc(f) {
			return ml.Example{}, false
		}
		label = int64(f)
	}

	return ml.Example{Text: entry.Text, Label: int(label)}, true
}
