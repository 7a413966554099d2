package ml

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"textstream/config"
)

// NewLearner 构造学习器：model_dir下有检查点则续训，否则新建模型
func NewLearner(cfg config.Config) (Learner, error) {
	if hasArtifact(cfg.ModelDir) {
		c, err := LoadTextClassifier(cfg.ModelDir)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint from %s failed: %w", cfg.ModelDir, err)
		}
		c.LR = cfg.LR
		c.Tok.MaxLength = cfg.MaxLength
		zap.S().Infof("resuming model %s from %s (steps=%d)", c.Name, cfg.ModelDir, c.Steps)
		return c, nil
	}

	zap.S().Infof("initializing fresh model %s", cfg.Model)
	return NewTextClassifier(cfg.Model, cfg.LR, cfg.MaxLength), nil
}

// NewScorer 从目录加载推理模型；检查点不存在时报错
func NewScorer(dir string) (Scorer, error) {
	c, err := LoadTextClassifier(dir)
	if err != nil {
		return nil, fmt.Errorf("load model from %s failed: %w", dir, err)
	}
	return c, nil
}

func hasArtifact(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, artifactName))
	return err == nil && !info.IsDir()
}
