package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func squash(s string) string { return strings.Join(strings.Fields(s), "") }

func TestShortTextIsOneTrimmedChunk(t *testing.T) {
	text := "  " + strings.Repeat("a", 1500) + "\n"
	got := New(500).Split(text)
	if len(got) != 1 {
		t.Fatalf("chunks: want=1 got=%d", len(got))
	}
	if got[0] != strings.TrimSpace(text) {
		t.Fatalf("chunk must equal trimmed input")
	}
}

func TestEmptyTextYieldsNothing(t *testing.T) {
	if got := New(500).Split(" \n\n "); len(got) != 0 {
		t.Fatalf("want no chunks got=%v", got)
	}
}

func TestLongParagraphsRespectBudget(t *testing.T) {
	sentence := strings.Repeat("word ", 19) + "end. "
	para := strings.TrimSpace(strings.Repeat(sentence, 25))
	text := strings.Join([]string{para, para, para}, "\n\n")
	if utf8.RuneCountInString(para) < 2400 {
		t.Fatalf("fixture too short: %d", utf8.RuneCountInString(para))
	}

	got := New(500).Split(text)
	if len(got) < 3 {
		t.Fatalf("chunks: want>=3 got=%d", len(got))
	}
	for i, c := range got {
		if n := utf8.RuneCountInString(c); n > 2000 || n == 0 {
			t.Fatalf("chunk %d length %d out of range", i, n)
		}
	}
	if squash(strings.Join(got, "")) != squash(text) {
		t.Fatalf("chunks do not reconstruct the text modulo whitespace")
	}
}

func TestUnbrokenTextIsHardSliced(t *testing.T) {
	text := strings.Repeat("x", 4500)
	got := New(500).Split(text)
	if len(got) != 3 {
		t.Fatalf("chunks: want=3 got=%d", len(got))
	}
	if len(got[0]) != 2000 || len(got[1]) != 2000 || len(got[2]) != 500 {
		t.Fatalf("slice lengths: %d %d %d", len(got[0]), len(got[1]), len(got[2]))
	}
}

func TestBudgetCountsCodePoints(t *testing.T) {
	text := strings.Repeat("é", 30)
	got := New(5).Split(text)
	if len(got) != 2 {
		t.Fatalf("chunks: want=2 got=%d", len(got))
	}
	if utf8.RuneCountInString(got[0]) != 20 {
		t.Fatalf("first chunk: want 20 runes got=%d", utf8.RuneCountInString(got[0]))
	}
}

func TestCRLFParagraphs(t *testing.T) {
	a := strings.Repeat("a", 15)
	b := strings.Repeat("b", 15)
	got := New(5).Split(a + "\r\n\r\n" + b)
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("want two paragraphs got=%q", got)
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("One. Two!  Three? Four.Five")
	want := []string{"One.", "Two!", "Three?", "Four.Five"}
	if len(got) != len(want) {
		t.Fatalf("want=%q got=%q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d: want=%q got=%q", i, want[i], got[i])
		}
	}
}

func TestPackSentencesFlushesBeforeOverflow(t *testing.T) {
	got := packSentences([]string{"aaaa.", "bbbb.", "cccc."}, 11)
	if len(got) != 2 || got[0] != "aaaa. bbbb." || got[1] != "cccc." {
		t.Fatalf("packing: got=%q", got)
	}
}
