// Package predictor 管理唯一的推理模型实例并与训练互斥
package predictor

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"textstream/ml"
)

// 错误分类：400类为调用方错误，409为与训练冲突
var (
	ErrInvalidRequest = errors.New("provide 'text' or 'texts' in the request")
	ErrNotLoaded      = errors.New("no predictor initialized")
	ErrTrainingActive = errors.New("training in progress; predictions unavailable")
)

// Status 加载/卸载操作的状态标记
type Status string

const (
	StatusLoaded        Status = "loaded"
	StatusAlreadyLoaded Status = "already_loaded"
	StatusUnloaded      Status = "unloaded"
	StatusNotLoaded     Status = "not_loaded"
)

const cacheSize = 1024

// Request 推理请求：text与texts二选一
type Request struct {
	Text  string   `json:"text,omitempty"`
	Texts []string `json:"texts,omitempty"`
}

// SlotInfo 加载/卸载操作的结果
type SlotInfo struct {
	Status   Status `json:"status"`
	ModelDir string `json:"model_dir"`
}

// Manager 持有至多一个活跃Scorer。每次推理都重新检查训练状态，
// 训练运行期间一律拒绝。
type Manager struct {
	defaultDir string
	isTraining func() bool

	mu       sync.RWMutex
	scorer   ml.Scorer
	modelDir string

	cache *lru.Cache[string, ml.Prediction]

	// 测试替换点
	newScorer func(dir string) (ml.Scorer, error)
}

// New 创建推理管理器；isTraining为生命周期门禁查询
func New(defaultDir string, isTraining func() bool) *Manager {
	cache, _ := lru.New[string, ml.Prediction](cacheSize)
	return &Manager{
		defaultDir: defaultDir,
		isTraining: isTraining,
		cache:      cache,
		newScorer:  ml.NewScorer,
	}
}

// Load 加载Scorer；已有实例时不重复加载
func (m *Manager) Load(modelDir string) (SlotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scorer != nil {
		return SlotInfo{Status: StatusAlreadyLoaded, ModelDir: m.modelDir}, nil
	}

	dir := modelDir
	if dir == "" {
		dir = m.defaultDir
	}

	scorer, err := m.newScorer(dir)
	if err != nil {
		return SlotInfo{}, err
	}

	m.scorer = scorer
	m.modelDir = dir
	m.cache.Purge()

	zap.S().Infof("predictor loaded from %s", dir)
	return SlotInfo{Status: StatusLoaded, ModelDir: dir}, nil
}

// Unload 卸载当前Scorer
func (m *Manager) Unload() SlotInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scorer == nil {
		return SlotInfo{Status: StatusNotLoaded}
	}

	dir := m.modelDir
	m.scorer = nil
	m.modelDir = ""
	m.cache.Purge()

	zap.S().Infof("predictor unloaded (%s)", dir)
	return SlotInfo{Status: StatusUnloaded, ModelDir: dir}
}

// ModelDir 当前加载的模型目录；未加载时为空串
func (m *Manager) ModelDir() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.modelDir
}

// Predict 校验请求、检查训练门禁与加载状态，然后委托给Scorer。
// 命中LRU缓存的文本不再重复推理。
func (m *Manager) Predict(req Request) ([]ml.Prediction, error) {
	texts, err := req.texts()
	if err != nil {
		return nil, err
	}

	// 每次调用都查询生命周期状态，不做缓存
	if m.isTraining != nil && m.isTraining() {
		return nil, ErrTrainingActive
	}

	m.mu.RLock()
	scorer := m.scorer
	m.mu.RUnlock()
	if scorer == nil {
		return nil, ErrNotLoaded
	}

	results := make([]ml.Prediction, len(texts))
	var misses []string
	missIdx := make(map[string][]int)
	for i, text := range texts {
		if cached, ok := m.cache.Get(text); ok {
			results[i] = cached
			continue
		}
		if len(missIdx[text]) == 0 {
			misses = append(misses, text)
		}
		missIdx[text] = append(missIdx[text], i)
	}

	if len(misses) > 0 {
		fresh, err := scorer.Predict(misses)
		if err != nil {
			return nil, fmt.Errorf("predict failed: %w", err)
		}
		for _, p := range fresh {
			m.cache.Add(p.Text, p)
			for _, i := range missIdx[p.Text] {
				results[i] = p
			}
		}
	}

	return results, nil
}

func (r Request) texts() ([]string, error) {
	switch {
	case r.Text != "" && len(r.Texts) == 0:
		return []string{r.Text}, nil
	case r.Text == "" && len(r.Texts) > 0:
		return r.Texts, nil
	default:
		return nil, ErrInvalidRequest
	}
}
