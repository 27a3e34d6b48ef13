package rag

import (
	"strings"
	"testing"
	"time"

	"github.com/thapargpt/thapargpt/internal/knowledge"
	"github.com/thapargpt/thapargpt/internal/lang"
)

func testBuilder(maxChars int) *Builder {
	b := NewBuilder(maxChars)
	b.Now = func() time.Time {
		return time.Date(2025, 7, 14, 10, 30, 0, 0, time.UTC)
	}
	return b
}

func TestBuildWithContext(t *testing.T) {
	b := testBuilder(24000)
	block := Assemble([]knowledge.Result{
		passage("a", "PG hostel fees are due by 15 July.", 0.9),
	}, 1000)

	p := b.Build("What are the PG hostel fee deadlines?", block, lang.English, "", nil)

	if p.System != systemGuidance {
		t.Error("system guidance was modified")
	}
	if !strings.Contains(p.User, "PG hostel fees are due by 15 July.") {
		t.Errorf("prompt missing passage: %s", p.User)
	}
	if !strings.Contains(p.User, "REFERENCE MATERIAL") {
		t.Error("context not framed as reference material")
	}
	if !strings.Contains(p.User, "Respond in English (en).") {
		t.Errorf("missing language directive: %s", p.User)
	}
	if !strings.Contains(p.User, "What are the PG hostel fee deadlines?") {
		t.Error("prompt missing query")
	}
}

func TestBuildLanguageDirective(t *testing.T) {
	b := testBuilder(24000)
	p := b.Build("sawal", Context{}, lang.Hindi, "", nil)
	if !strings.Contains(p.User, "Respond in Hindi (hi).") {
		t.Errorf("missing Hindi directive: %s", p.User)
	}
}

func TestBuildEmptyContext(t *testing.T) {
	b := testBuilder(24000)
	p := b.Build("who invented the telephone", Context{}, lang.English, "", nil)
	if !strings.Contains(p.User, "No institute reference material") {
		t.Errorf("empty context missing general-knowledge caveat: %s", p.User)
	}
}

func TestBuildIncludesHistory(t *testing.T) {
	b := testBuilder(24000)
	history := []Turn{
		{User: "hello", Assistant: "hi there"},
		{User: "what about fees", Assistant: "fees info"},
	}
	p := b.Build("and deadlines?", Context{}, lang.English, "", history)
	if !strings.Contains(p.User, "User: hello") || !strings.Contains(p.User, "Assistant: fees info") {
		t.Errorf("history missing: %s", p.User)
	}
}

func TestBuildDropsOldestHistoryFirst(t *testing.T) {
	b := testBuilder(800)
	history := []Turn{
		{User: strings.Repeat("old ", 100), Assistant: "old answer"},
		{User: "recent question", Assistant: "recent answer"},
	}
	block := Assemble([]knowledge.Result{
		passage("a", "top passage text", 0.9),
	}, 1000)

	p := b.Build("next question", block, lang.English, "", history)

	if strings.Contains(p.User, "old answer") {
		t.Error("oldest turn not dropped")
	}
	if !strings.Contains(p.User, "recent answer") {
		t.Error("most recent turn was dropped")
	}
	if !strings.Contains(p.User, "top passage text") {
		t.Error("highest-similarity passage was dropped")
	}
}

func TestBuildDropsLowestSimilarityPassages(t *testing.T) {
	b := testBuilder(700)
	block := Assemble([]knowledge.Result{
		passage("a", "highest similarity passage", 0.9),
		passage("b", strings.Repeat("filler ", 60), 0.5),
	}, 10000)

	p := b.Build("q", block, lang.English, "", nil)

	if !strings.Contains(p.User, "highest similarity passage") {
		t.Error("top passage must survive trimming")
	}
	if strings.Contains(p.User, "filler filler") {
		t.Error("low-similarity passage not dropped")
	}
}

func TestBuildSystemNeverTruncated(t *testing.T) {
	b := testBuilder(10) // absurdly small
	p := b.Build("q", Context{}, lang.English, "", nil)
	if p.System != systemGuidance {
		t.Error("system guidance truncated")
	}
}

func TestBuildAttachmentFramedAsReference(t *testing.T) {
	b := testBuilder(24000)
	p := b.Build("summarize", Context{}, lang.English, "extracted attachment text", nil)
	if !strings.Contains(p.User, "ATTACHMENT TEXT (reference only)") {
		t.Errorf("attachment not framed as reference: %s", p.User)
	}
}
