package trainer

import (
	"errors"
	"testing"
)

func TestParsePayloadDropsInvalidEntries(t *testing.T) {
	payload := []byte(`{"examples":[{"text":"good","label":1},{"text":"","label":0}]}`)

	examples, err := ParsePayload(payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(examples) != 1 {
		t.Fatalf("expected exactly 1 valid example, got %d", len(examples))
	}
	if examples[0].Text != "good" || examples[0].Label != 1 {
		t.Fatalf("unexpected example: %+v", examples[0])
	}
}

func TestParsePayloadLenientEntries(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    int
	}{
		{"missing text", `{"examples":[{"label":1}]}`, 0},
		{"missing label", `{"examples":[{"text":"hi"}]}`, 0},
		{"string label", `{"examples":[{"text":"hi","label":"pos"}]}`, 0},
		{"float label", `{"examples":[{"text":"hi","label":1.5}]}`, 0},
		{"integral float label", `{"examples":[{"text":"hi","label":2.0}]}`, 1},
		{"numeric string label", `{"examples":[{"text":"hi","label":"1"}]}`, 0},
		{"no examples key", `{}`, 0},
		{"empty examples", `{"examples":[]}`, 0},
		{"mixed", `{"examples":[{"text":"a","label":0},{"label":1},{"text":"b","label":1}]}`, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			examples, err := ParsePayload([]byte(tc.payload))
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if len(examples) != tc.want {
				t.Fatalf("expected %d examples, got %d", tc.want, len(examples))
			}
		})
	}
}

func TestParsePayloadStrictTopLevel(t *testing.T) {
	for _, payload := range []string{`not json`, `[1,2,3]`, `{"examples":"nope"}`} {
		_, err := ParsePayload([]byte(payload))
		if !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("payload %q: expected ErrMalformedPayload, got %v", payload, err)
		}
	}
}

func TestParsePayloadPreservesOrder(t *testing.T) {
	payload := []byte(`{"examples":[{"text":"first","label":0},{"text":"second","label":1},{"text":"third","label":2}]}`)

	examples, err := ParsePayload(payload)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, text := range want {
		if examples[i].Text != text {
			t.Fatalf("position %d: expected %q, got %q", i, text, examples[i].Text)
		}
	}
}
