// Package local runs on-device transformer models through ONNX Runtime
// and exposes them behind the capability provider interfaces.
package local

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Tokenizer is a WordPiece tokenizer driven by a vocab.txt file, one
// token per line. It covers the BERT-style models this package loads;
// anything fancier ships its vocab with the model files.
type Tokenizer struct {
	vocab  map[string]int64
	unkID  int64
	clsID  int64
	sepID  int64
	padID  int64
	maxLen int
}

const maxWordpieceChars = 100

// NewTokenizer loads a vocabulary file.
func NewTokenizer(vocabPath string, maxLen int) (*Tokenizer, error) {
	file, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("local: failed to open vocab %s: %w", vocabPath, err)
	}
	defer file.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(file)
	var id int64
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		vocab[token] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("local: failed to read vocab %s: %w", vocabPath, err)
	}

	t := &Tokenizer{vocab: vocab, maxLen: maxLen}
	var ok bool
	if t.unkID, ok = vocab["[UNK]"]; !ok {
		return nil, fmt.Errorf("local: vocab %s missing [UNK]", vocabPath)
	}
	if t.clsID, ok = vocab["[CLS]"]; !ok {
		return nil, fmt.Errorf("local: vocab %s missing [CLS]", vocabPath)
	}
	if t.sepID, ok = vocab["[SEP]"]; !ok {
		return nil, fmt.Errorf("local: vocab %s missing [SEP]", vocabPath)
	}
	t.padID = vocab["[PAD]"]
	return t, nil
}

// Encode produces input ids and an attention mask for one or two text
// segments: [CLS] a [SEP] for one, [CLS] a [SEP] b [SEP] for two.
// Output is truncated to the tokenizer's maximum length.
func (t *Tokenizer) Encode(texts ...string) (ids, mask []int64) {
	ids = append(ids, t.clsID)
	for _, text := range texts {
		for _, word := range splitWords(text) {
			ids = append(ids, t.wordpiece(word)...)
		}
		ids = append(ids, t.sepID)
	}

	if len(ids) > t.maxLen {
		ids = ids[:t.maxLen]
		ids[t.maxLen-1] = t.sepID
	}

	mask = make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return ids, mask
}

// wordpiece greedily matches the longest known prefix, using the "##"
// continuation convention for suffix pieces.
func (t *Tokenizer) wordpiece(word string) []int64 {
	if len(word) > maxWordpieceChars {
		return []int64{t.unkID}
	}

	var pieces []int64
	runes := []rune(word)
	start := 0
	for start < len(runes) {
		end := len(runes)
		var pieceID int64
		found := false
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				pieceID = id
				found = true
				break
			}
			end--
		}
		if !found {
			return []int64{t.unkID}
		}
		pieces = append(pieces, pieceID)
		start = end
	}
	return pieces
}

// splitWords lowercases and splits on whitespace, breaking punctuation
// into standalone tokens.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}
