package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNoJSON = errors.New("no JSON array found in model output")

	fencedBlock   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractArray recovers a JSON array from raw LLM output. Models are told
// to emit bare JSON but routinely wrap it in markdown fences, surround it
// with prose, or leave trailing commas; this strips all three before
// handing the text to the decoder.
func ExtractArray(raw string) ([]json.RawMessage, error) {
	text := strings.TrimSpace(raw)

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	text = text[start : end+1]

	text = trailingComma.ReplaceAllString(text, "$1")

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elems); err != nil {
		return nil, fmt.Errorf("model output is not a valid JSON array: %w", err)
	}
	return elems, nil
}
