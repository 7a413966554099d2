package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"os"

	"textstream/config"
	"textstream/ml"
)

func main() {
	dataPath := flag.String("data", "", "JSONL file with {\"text\":...,\"label\":...} per line")
	configPath := flag.String("config", "config.json", "trainer config path")
	epochs := flag.Int("epochs", 1, "number of passes over the data")
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("data is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	examples, err := loadExamples(*dataPath)
	if err != nil {
		log.Fatalf("failed to load data: %v", err)
	}
	if len(examples) == 0 {
		log.Fatal("no valid examples in data file")
	}
	log.Printf("loaded %d examples from %s", len(examples), *dataPath)

	learner, err := ml.NewLearner(cfg)
	if err != nil {
		log.Fatalf("failed to init learner: %v", err)
	}

	for epoch := 0; epoch < *epochs; epoch++ {
		var lastLoss float64
		batches := 0
		for start := 0; start < len(examples); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(examples) {
				end = len(examples)
			}
			loss, err := learner.TrainBatch(examples[start:end])
			if err != nil {
				log.Printf("batch %d failed: %v", batches, err)
				continue
			}
			lastLoss = loss
			batches++
		}
		log.Printf("epoch %d done: batches=%d loss=%.4f", epoch+1, batches, lastLoss)
	}

	if err := learner.Save(cfg.ModelDir); err != nil {
		log.Fatalf("failed to save model: %v", err)
	}
	log.Printf("model saved to %s", cfg.ModelDir)
}

func loadExamples(path string) ([]ml.Example, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var examples []ml.Example
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var example ml.Example
		if err := json.Unmarshal(line, &example); err != nil || example.Text == "" {
			continue
		}
		examples = append(examples, example)
	}
	return examples, scanner.Err()
}
