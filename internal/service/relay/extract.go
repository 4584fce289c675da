package relay

import (
	"encoding/json"
	"strings"
)

// Extractor pulls reply text out of one known upstream envelope shape.
type Extractor struct {
	Name    string
	Extract func(body []byte) (string, bool)
}

// DefaultExtractors lists the envelope shapes the endpoint is known to return, in the order
// they are tried:
//
//	{"choices":[{"message":{"content":"..."}}]}
//	{"data":[{"choices":[{"message":{"content":"..."}}]}]}
//	{"data":["..."]}
var DefaultExtractors = []Extractor{
	{Name: "choices", Extract: extractFlatChoices},
	{Name: "data.choices", Extract: extractNestedChoices},
	{Name: "data.text", Extract: extractBareString},
}

type choicesEnvelope struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type dataEnvelope struct {
	Data []json.RawMessage `json:"data"`
}

func firstChoice(env choicesEnvelope) (string, bool) {
	if len(env.Choices) == 0 || env.Choices[0].Message.Content == nil {
		return "", false
	}
	content := *env.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", false
	}
	return content, true
}

func extractFlatChoices(body []byte) (string, bool) {
	var env choicesEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", false
	}
	return firstChoice(env)
}

func firstData(body []byte) (json.RawMessage, bool) {
	var env dataEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Data) == 0 {
		return nil, false
	}
	return env.Data[0], true
}

func extractNestedChoices(body []byte) (string, bool) {
	raw, ok := firstData(body)
	if !ok {
		return "", false
	}
	var env choicesEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", false
	}
	return firstChoice(env)
}

func extractBareString(body []byte) (string, bool) {
	raw, ok := firstData(body)
	if !ok {
		return "", false
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// ExtractContent runs extractors in order and returns the first text found.
func ExtractContent(body []byte, extractors []Extractor) (string, error) {
	if !json.Valid(body) {
		return "", &MalformedResponse{Reason: "body is not valid JSON"}
	}
	for _, extractor := range extractors {
		if content, ok := extractor.Extract(body); ok {
			return content, nil
		}
	}
	return "", &MalformedResponse{Reason: "no known envelope shape carried reply text"}
}
