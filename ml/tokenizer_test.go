package ml

import "testing"

func TestTokens(t *testing.T) {
	tok := Tokenizer{Dim: 4096, MaxLength: 128}

	tokens := tok.Tokens("Hello, World! 42")
	want := []string{"hello", "world", "42"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d: expected %q, got %q", i, want[i], tokens[i])
		}
	}
}

func TestTokensTruncation(t *testing.T) {
	tok := Tokenizer{Dim: 4096, MaxLength: 2}

	tokens := tok.Tokens("one two three four")
	if len(tokens) != 2 {
		t.Fatalf("expected truncation to 2 tokens, got %v", tokens)
	}
}

func TestFeatures(t *testing.T) {
	tok := Tokenizer{Dim: 4096, MaxLength: 128}

	features := tok.Features("spam spam eggs")
	total := 0.0
	for idx, count := range features {
		if idx < 0 || idx >= tok.Dim {
			t.Fatalf("feature index %d out of range", idx)
		}
		total += count
	}
	if total != 3 {
		t.Fatalf("expected 3 token counts, got %v", total)
	}

	// 同一文本的特征必须确定
	again := tok.Features("spam spam eggs")
	if len(again) != len(features) {
		t.Fatalf("features not deterministic: %v vs %v", features, again)
	}
	for idx, count := range features {
		if again[idx] != count {
			t.Fatalf("features not deterministic at %d", idx)
		}
	}
}

func TestFeaturesEmptyText(t *testing.T) {
	tok := Tokenizer{Dim: 4096, MaxLength: 128}
	if features := tok.Features(""); len(features) != 0 {
		t.Fatalf("expected no features for empty text, got %v", features)
	}
}
