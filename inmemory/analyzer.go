package inmemory

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"
)

// normalize applies Unicode normalization (NFKC) and converts to lowercase.
func normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// tokenize splits text into UAX#29 words, dropping whitespace and punctuation.
func tokenize(s string) []string {
	toks := words.FromString(normalize(s))
	var tokens []string
	for toks.Next() {
		tok := toks.Value()
		if strings.IndexFunc(tok, isWordRune) < 0 {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// walkTerms calls fn for every term a field value contributes to the index.
// Strings of analyzed fields are tokenized; every other scalar becomes one
// exact term. Slices are multi-valued and nested objects are flattened with
// dotted field names.
func (ix *Index) walkTerms(field string, value interface{}, fn func(field, term string)) {
	switch v := value.(type) {
	case nil:
	case string:
		if ix.isAnalyzed(field) {
			for _, tok := range tokenize(v) {
				fn(field, tok)
			}
			return
		}
		fn(field, v)
	case []string:
		for _, item := range v {
			ix.walkTerms(field, item, fn)
		}
	case []interface{}:
		for _, item := range v {
			ix.walkTerms(field, item, fn)
		}
	case map[string]interface{}:
		for k, item := range v {
			ix.walkTerms(field+"."+k, item, fn)
		}
	default:
		fn(field, fmt.Sprintf("%v", v))
	}
}

func (ix *Index) isAnalyzed(field string) bool {
	_, ok := ix.analyzed[field]
	return ok
}
