package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/thapargpt/thapargpt/internal/lang"
	"github.com/thapargpt/thapargpt/internal/log"
)

type fakeTranslator struct {
	result string
	err    error
	calls  int
}

func (f *fakeTranslator) Translate(_ context.Context, _ string, _ lang.Language) (string, error) {
	f.calls++
	return f.result, f.err
}

func TestNormalizeEnglishUnchanged(t *testing.T) {
	tr := &fakeTranslator{result: "should not be used"}
	n := NewNormalizer(tr, nil, log.NewNop())

	text := "The fee deadline is 15 July."
	got, translated := n.Normalize(context.Background(), text, lang.English)
	if got != text || translated {
		t.Fatalf("Normalize(english) = (%q, %v), want unchanged", got, translated)
	}
	if tr.calls != 0 {
		t.Errorf("translator invoked %d times for English target", tr.calls)
	}

	// Idempotent: normalizing again still returns the same text.
	again, _ := n.Normalize(context.Background(), got, lang.English)
	if again != text {
		t.Errorf("Normalize not idempotent: %q", again)
	}
}

func TestNormalizeTranslatesOnDirectiveMismatch(t *testing.T) {
	tr := &fakeTranslator{result: "छात्रावास शुल्क"}
	// The generation output is English although Hindi was requested.
	n := NewNormalizer(tr, func(string) lang.Language { return lang.English }, log.NewNop())

	got, translated := n.Normalize(context.Background(), "The hostel fee is due.", lang.Hindi)
	if !translated {
		t.Fatal("expected a translation pass")
	}
	if got != "छात्रावास शुल्क" {
		t.Errorf("Normalize() = %q", got)
	}
}

func TestNormalizeSkipsWhenDirectiveHonored(t *testing.T) {
	tr := &fakeTranslator{result: "unused"}
	n := NewNormalizer(tr, func(string) lang.Language { return lang.Hindi }, log.NewNop())

	text := "छात्रावास शुल्क की अंतिम तिथि 15 जुलाई है"
	got, translated := n.Normalize(context.Background(), text, lang.Hindi)
	if got != text || translated {
		t.Fatalf("Normalize() = (%q, %v), want passthrough", got, translated)
	}
	if tr.calls != 0 {
		t.Errorf("translator invoked %d times when directive honored", tr.calls)
	}
}

func TestNormalizeTranslationFailureDegrades(t *testing.T) {
	tr := &fakeTranslator{err: errors.New("translation service down")}
	n := NewNormalizer(tr, func(string) lang.Language { return lang.English }, log.NewNop())

	text := "The hostel fee is due."
	got, translated := n.Normalize(context.Background(), text, lang.Hindi)
	if got != text {
		t.Fatalf("Normalize() dropped the answer on translation failure: %q", got)
	}
	if translated {
		t.Error("translated flag set despite failure")
	}
}

func TestNormalizeEmptyText(t *testing.T) {
	tr := &fakeTranslator{}
	n := NewNormalizer(tr, nil, log.NewNop())
	if got, translated := n.Normalize(context.Background(), "", lang.Hindi); got != "" || translated {
		t.Errorf("Normalize(empty) = (%q, %v)", got, translated)
	}
}
