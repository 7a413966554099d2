// Package config 提供训练器配置加载
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config 训练配置（config.json）
type Config struct {
	Model          string  `json:"model"`
	ModelDir       string  `json:"model_dir"`
	BatchSize      int     `json:"batch_size"`
	LR             float64 `json:"lr"`
	MaxLength      int     `json:"max_length"`
	QueueSize      int     `json:"queue_size"`
	PollIntervalMs int     `json:"poll_interval_ms"`
}

// Default 默认配置
func Default() Config {
	return Config{
		Model:          "bow-softmax",
		ModelDir:       "./outputs",
		BatchSize:      8,
		LR:             5e-5,
		MaxLength:      128,
		QueueSize:      256,
		PollIntervalMs: 1000,
	}
}

// PollInterval 消费循环的等待超时
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Load 从JSON文件加载配置；文件不存在时返回默认值
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config failed: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config failed: %w", err)
	}

	return normalize(cfg), nil
}

// normalize 修正非法字段
func normalize(cfg Config) Config {
	def := Default()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = def.ModelDir
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.LR <= 0 {
		cfg.LR = def.LR
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.PollIntervalMs <= 0 {
		cfg.PollIntervalMs = def.PollIntervalMs
	}
	return cfg
}
