// Package verdict turns a responder reply into a structured Verdict.
//
// Replies are cleaned (markdown fences, surrounding prose, trailing
// commas) and then decoded and validated: keys outside the verdict schema
// are ignored, while the response and the score range are enforced.
// Single-quoted pseudo-JSON is accepted only when the cleaned reply is not
// valid JSON to begin with.
package verdict

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

// ErrMalformedVerdict is returned when a reply cannot be read as a verdict.
var ErrMalformedVerdict = errors.New("malformed verdict")

// Verdict is the structured judgement on a claim.
type Verdict struct {
	Confirming []string `json:"confirming"`
	Refuting   []string `json:"refuting"`
	Response   string   `json:"response" validate:"required"`
	// CorrectnessScore is nil when the model could not assess the claim.
	CorrectnessScore *int `json:"correctness_score" validate:"omitempty,min=0,max=100"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// wire is the accepted reply shape. The misspelled score key appears in
// replies to an older prompt revision.
type wire struct {
	Confirming  []json.RawMessage `json:"confirming"`
	Refuting    []json.RawMessage `json:"refuting"`
	Response    string            `json:"response"`
	Score       json.RawMessage   `json:"correctness_score"`
	LegacyScore json.RawMessage   `json:"corectness_score"`
}

// Parse cleans and decodes raw.
func Parse(raw string) (*Verdict, error) {
	cleaned := Clean(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedVerdict)
	}

	v, err := decode(cleaned)
	if err != nil && !gjson.Valid(cleaned) && strings.Contains(cleaned, "'") {
		requoted := removeTrailingCommas(strings.ReplaceAll(cleaned, "'", `"`))
		if v2, err2 := decode(requoted); err2 == nil {
			v, err = v2, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedVerdict, err)
	}

	if err := validate.Struct(v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedVerdict, err)
	}
	return v, nil
}

// Clean strips fences and prose around the outermost JSON object and
// drops trailing commas. It returns "" when there is no object.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return removeTrailingCommas(s[start : end+1])
}

// removeTrailingCommas drops commas followed only by whitespace and a
// closing bracket, leaving string contents alone.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case ',':
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func decode(s string) (*Verdict, error) {
	dec := json.NewDecoder(strings.NewReader(s))

	var w wire
	if err := dec.Decode(&w); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after verdict object")
	}

	scoreRaw := w.Score
	if isNull(scoreRaw) {
		scoreRaw = w.LegacyScore
	}
	score, err := parseScore(scoreRaw)
	if err != nil {
		return nil, err
	}

	return &Verdict{
		Confirming:       sources(w.Confirming),
		Refuting:         sources(w.Refuting),
		Response:         strings.TrimSpace(w.Response),
		CorrectnessScore: score,
	}, nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// parseScore accepts a number or a numeric string and rounds to an int.
func parseScore(raw json.RawMessage) (*int, error) {
	if isNull(raw) {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil, fmt.Errorf("correctness_score: %s is not a number", raw)
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("correctness_score: %q is not a number", s)
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("correctness_score: %v is not finite", f)
	}
	n := int(math.Round(f))
	return &n, nil
}

// sources renders each entry as text. Objects use their title, filename
// or name, falling back to compact JSON.
func sources(items []json.RawMessage) []string {
	out := make([]string, 0, len(items))
	for _, raw := range items {
		r := gjson.ParseBytes(raw)
		switch {
		case r.Type == gjson.String:
			if s := strings.TrimSpace(r.String()); s != "" {
				out = append(out, s)
			}
		case r.IsObject():
			label := ""
			for _, key := range []string{"title", "filename", "name", "source"} {
				if v := r.Get(key); v.Type == gjson.String && v.String() != "" {
					label = v.String()
					break
				}
			}
			if label == "" {
				var buf bytes.Buffer
				if json.Compact(&buf, raw) == nil {
					label = buf.String()
				} else {
					label = string(raw)
				}
			}
			out = append(out, label)
		case r.Type == gjson.Null:
		default:
			out = append(out, strings.TrimSpace(r.Raw))
		}
	}
	return out
}
