package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("Hello world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths: %d %d %d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsTokenID || ids[3] != sepTokenID {
		t.Errorf("expected [CLS] w w [SEP], got %v", ids[:4])
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("attention mask: %v", attn)
	}
	lower, _, _ := tok.Tokenize("hello WORLD", 10)
	if lower[1] != ids[1] || lower[2] != ids[2] {
		t.Error("tokenization should be case-insensitive")
	}
}

func TestSimpleTokenizer_truncates(t *testing.T) {
	ids, attn, _ := (&SimpleTokenizer{}).Tokenize("a b c d e f g h", 4)
	if ids[3] != sepTokenID {
		t.Errorf("last token should be [SEP], got %v", ids)
	}
	for i, a := range attn {
		if a != 1 {
			t.Errorf("attention[%d] = %d", i, a)
		}
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  a  b\tc\n ")
	if len(words) != 3 {
		t.Errorf("expected 3 words, got %v", words)
	}
	if len(SplitWords("")) != 0 {
		t.Error("empty string should yield no words")
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") == 0 {
		t.Error("hash should be non-zero")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	long := ""
	for i := 0; i < 200; i++ {
		long += "zz"
	}
	if HashString(long) == HashString(long+"z") {
		t.Error("suffix should change the hash")
	}
}

func TestSimpleTokenizer_highHashStaysInVocabulary(t *testing.T) {
	const word = "coverage"
	if HashString(word) < 1<<31 {
		t.Fatalf("want a hash with the high bit set, got %d", HashString(word))
	}
	ids, _, _ := (&SimpleTokenizer{}).Tokenize(word, 4)
	if ids[1] < 1000 || ids[1] >= vocabSize {
		t.Errorf("token id %d outside [1000, %d)", ids[1], vocabSize)
	}
}
