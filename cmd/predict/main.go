package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"textstream/ml"
)

func main() {
	modelDir := flag.String("model_dir", "./outputs", "directory with a saved model")
	flag.Parse()

	scorer, err := ml.NewScorer(*modelDir)
	if err != nil {
		log.Fatalf("failed to load model: %v", err)
	}

	texts := flag.Args()
	if len(texts) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				texts = append(texts, line)
			}
		}
	}
	if len(texts) == 0 {
		log.Fatal("no input texts (pass as arguments or on stdin)")
	}

	results, err := scorer.Predict(texts)
	if err != nil {
		log.Fatalf("predict failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, result := range results {
		if err := enc.Encode(result); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}
