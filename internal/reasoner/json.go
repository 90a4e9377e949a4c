package reasoner

import (
	"errors"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var ErrUnparsable = errors.New("reasoner: output is not a JSON object")

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ExtractJSON returns the JSON object found in text, tolerating markdown
// fences and prose around it.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", ErrUnparsable
	}
	s = s[start : end+1]
	if !jsoniter.Valid([]byte(s)) {
		return "", ErrUnparsable
	}
	return s, nil
}
