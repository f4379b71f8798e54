package verdict

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestParse(t *testing.T) {
	want := &Verdict{
		Confirming:       []string{"PubMed_test_1.txt"},
		Refuting:         []string{},
		Response:         "Supported by one trial.",
		CorrectnessScore: intPtr(80),
	}
	plain := `{"confirming": ["PubMed_test_1.txt"], "refuting": [], "response": "Supported by one trial.", "correctness_score": 80}`

	tests := []struct {
		name string
		raw  string
	}{
		{"plain", plain},
		{"json fence", "```json\n" + plain + "\n```"},
		{"bare fence", "```\n" + plain + "```"},
		{"fence with trailing comma", "```json\n{\"confirming\": [\"PubMed_test_1.txt\",], \"refuting\": [], \"response\": \"Supported by one trial.\", \"correctness_score\": 80,}\n```"},
		{"surrounding prose", "Here is the verdict:\n" + plain + "\nThanks."},
		{"legacy score key", `{"confirming": ["PubMed_test_1.txt"], "refuting": [], "response": "Supported by one trial.", "corectness_score": 80}`},
		{"single quotes", `{'confirming': ['PubMed_test_1.txt'], 'refuting': [], 'response': 'Supported by one trial.', 'correctness_score': 80}`},
		{"score as string", `{"confirming": ["PubMed_test_1.txt"], "refuting": [], "response": "Supported by one trial.", "correctness_score": "80"}`},
		{"fractional score", `{"confirming": ["PubMed_test_1.txt"], "refuting": [], "response": "Supported by one trial.", "correctness_score": 79.6}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParse_NullScore(t *testing.T) {
	got, err := Parse(`{"confirming": [], "refuting": [], "response": "Cannot assess.", "correctness_score": null}`)
	require.NoError(t, err)
	assert.Nil(t, got.CorrectnessScore)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"confirming": [], "refuting": [], "response": "Cannot assess.", "correctness_score": null}`, string(out))
}

func TestParse_ObjectSources(t *testing.T) {
	got, err := Parse(`{"confirming": [{"title": "Vitamin C trial"}, {"filename": "a.txt"}, {"id": 3}], "refuting": [7], "response": "Mixed."}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Vitamin C trial", "a.txt", `{"id":3}`}, got.Confirming)
	assert.Equal(t, []string{"7"}, got.Refuting)
}

func TestParse_IgnoresExtraKeys(t *testing.T) {
	got, err := Parse(`{"confirming": ["a.txt"], "refuting": [], "sources": ["a.txt"], "response": "Supported.", "correctness_score": 70, "confidence": "high"}`)
	require.NoError(t, err)
	assert.Equal(t, &Verdict{
		Confirming:       []string{"a.txt"},
		Refuting:         []string{},
		Response:         "Supported.",
		CorrectnessScore: intPtr(70),
	}, got)
}

func TestParse_ApostropheInValidJSON(t *testing.T) {
	got, err := Parse(`{"confirming": [], "refuting": [], "response": "The post's claim is wrong.", "correctness_score": 5}`)
	require.NoError(t, err)
	assert.Equal(t, "The post's claim is wrong.", got.Response)
}

func TestParse_Malformed(t *testing.T) {
	tests := map[string]string{
		"no object":        "I cannot answer that.",
		"only extra keys":  `{"verdict": "true", "sources": []}`,
		"missing response": `{"confirming": [], "refuting": []}`,
		"score too high":   `{"response": "x", "correctness_score": 150}`,
		"negative score":   `{"response": "x", "correctness_score": -1}`,
		"score not number": `{"response": "x", "correctness_score": "high"}`,
		"truncated":        `{"response": "x", "confirming": [`,
		"two objects":      `{"response": "x"} {"response": "y"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(raw)
			assert.ErrorIs(t, err, ErrMalformedVerdict)
		})
	}
}

func TestClean(t *testing.T) {
	assert.Equal(t, "{\"a\": [1, 2\n]}", Clean("```json\n{\"a\": [1, 2,\n]}\n```"))
	assert.Equal(t, `{"a": "x, }"}`, Clean(`{"a": "x, }"}`))
	assert.Empty(t, Clean("no json here"))
}
