package ml

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// Tokenizer 把文本切分成词元并哈希到固定维度
type Tokenizer struct {
	Dim       int `json:"dim"`
	MaxLength int `json:"max_length"`
}

// Tokens 返回截断到MaxLength的词元序列
func (t Tokenizer) Tokens(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if t.MaxLength > 0 && len(tokens) > t.MaxLength {
		tokens = tokens[:t.MaxLength]
	}
	return tokens
}

// Features 稀疏词袋特征：桶索引 -> 计数
func (t Tokenizer) Features(text string) map[int]float64 {
	features := make(map[int]float64)
	for _, token := range t.Tokens(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		idx := int(h.Sum32()) % t.Dim
		if idx < 0 {
			idx += t.Dim
		}
		features[idx]++
	}
	return features
}
