package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// Fake is an in-memory Generator and Embedder for tests. Replies are
// looked up by prompt substring; embeddings hash words into a fixed
// number of buckets so texts sharing words score as similar.
type Fake struct {
	mu sync.Mutex

	// first registered match wins
	replies []fakeReply
	// Default is returned when nothing matches.
	Default string
	// Err, when set, fails every call.
	Err error
	// EmbedErr fails Embed for texts containing the key.
	EmbedErr map[string]error
	// Dims is the embedding size (default 64).
	Dims int

	Requests []Request
	Embeds   []EmbedOptions
}

type fakeReply struct {
	match string
	reply string
	err   error
}

// Match registers reply for prompts containing substr.
func (f *Fake) Match(substr, reply string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, fakeReply{match: substr, reply: reply})
	return f
}

// Fail registers err for prompts containing substr.
func (f *Fake) Fail(substr string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, fakeReply{match: substr, err: err})
	return f
}

// Generate implements Generator.
func (f *Fake) Generate(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	if f.Err != nil {
		return "", f.Err
	}
	for _, r := range f.replies {
		if strings.Contains(req.Prompt, r.match) {
			return r.reply, r.err
		}
	}
	if f.Default == "" {
		return "", ErrEmptyResponse
	}
	return f.Default, nil
}

// Calls returns the number of Generate calls so far.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// Embed implements Embedder.
func (f *Fake) Embed(_ context.Context, text string, opts EmbedOptions) ([]float32, error) {
	f.mu.Lock()
	f.Embeds = append(f.Embeds, opts)
	err := f.Err
	for k, e := range f.EmbedErr {
		if strings.Contains(text, k) {
			err = e
		}
	}
	dims := f.Dims
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if dims == 0 {
		dims = 64
	}
	return HashEmbedding(text, dims), nil
}

// HashEmbedding is a normalized bag-of-words vector.
func HashEmbedding(text string, dims int) []float32 {
	vec := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
