// Package search builds a TF-IDF vector space over the catalog's normalized
// titles and answers nearest-neighbor title queries by cosine similarity.
// The space is fit once at startup and is immutable afterwards.
package search

import (
	"math"
	"strings"
	"unicode"
)

// Vectorizer holds a fitted vocabulary and smoothed inverse-document-frequency
// weights. Weights follow idf = ln((1+n)/(1+df)) + 1 and document vectors are
// L2-normalized, so dot products between transformed vectors are cosine
// similarities.
type Vectorizer struct {
	vocab map[string]int
	idf   []float64
}

// FitVectorizer builds the vocabulary and idf weights over the given corpus.
func FitVectorizer(docs []string) *Vectorizer {
	v := &Vectorizer{vocab: make(map[string]int)}
	df := make([]int, 0)
	for _, doc := range docs {
		seen := make(map[int]struct{})
		for _, term := range tokenize(doc) {
			id, ok := v.vocab[term]
			if !ok {
				id = len(v.vocab)
				v.vocab[term] = id
				df = append(df, 0)
			}
			if _, counted := seen[id]; !counted {
				df[id]++
				seen[id] = struct{}{}
			}
		}
	}
	n := float64(len(docs))
	v.idf = make([]float64, len(df))
	for id, count := range df {
		v.idf[id] = math.Log((1+n)/(1+float64(count))) + 1
	}
	return v
}

// VocabSize returns the number of distinct fitted terms.
func (v *Vectorizer) VocabSize() int {
	return len(v.vocab)
}

// Transform projects a document into the fitted space as a sparse
// term-id → weight vector, L2-normalized. Out-of-vocabulary terms contribute
// nothing.
func (v *Vectorizer) Transform(doc string) map[int]float64 {
	tf := make(map[int]float64)
	for _, term := range tokenize(doc) {
		if id, ok := v.vocab[term]; ok {
			tf[id]++
		}
	}
	if len(tf) == 0 {
		return tf
	}
	var norm float64
	for id := range tf {
		tf[id] *= v.idf[id]
		norm += tf[id] * tf[id]
	}
	norm = math.Sqrt(norm)
	for id := range tf {
		tf[id] /= norm
	}
	return tf
}

// tokenize lowercases the text and emits maximal alphanumeric runs of at
// least two characters; single-character runs are dropped.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	terms := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := terms[:0]
	for _, t := range terms {
		if len(t) >= 2 {
			out = append(out, t)
		}
	}
	return out
}
