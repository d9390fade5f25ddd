// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import (
	"testing"

	"github.com/go-text/typesetting/language"
)

func TestVisualRunsLatin(t *testing.T) {
	runs := visualRuns("hello world")
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.text != "hello world" || r.rtl {
		t.Errorf("run = %+v, want ltr with original text", r)
	}
	if r.script != language.Latin {
		t.Errorf("script = %v, want Latin", r.script)
	}
	if r.drawText() != "hello world" {
		t.Errorf("drawText = %q", r.drawText())
	}
}

func TestVisualRunsEmpty(t *testing.T) {
	if runs := visualRuns(""); runs != nil {
		t.Errorf("empty line produced runs: %+v", runs)
	}
}

func TestVisualRunsHebrew(t *testing.T) {
	runs := visualRuns("שלום")
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if !r.rtl {
		t.Error("hebrew run not rtl")
	}
	if r.text != "שלום" {
		t.Errorf("text = %q, logical order not kept", r.text)
	}
	if r.drawText() != "םולש" {
		t.Errorf("drawText = %q, want rune-reversed", r.drawText())
	}
	if want := language.LookupScript('ש'); r.script != want {
		t.Errorf("script = %v, want %v", r.script, want)
	}
}

func TestVisualRunsMixedDirection(t *testing.T) {
	runs := visualRuns("abc שלום xyz")
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3: %+v", len(runs), runs)
	}
	want := []struct {
		text string
		rtl  bool
	}{
		{"abc ", false},
		{"שלום", true},
		{" xyz", false},
	}
	for i, w := range want {
		if runs[i].text != w.text || runs[i].rtl != w.rtl {
			t.Errorf("run %d = {%q rtl=%t}, want {%q rtl=%t}",
				i, runs[i].text, runs[i].rtl, w.text, w.rtl)
		}
	}
}

func TestVisualRunsScriptSplit(t *testing.T) {
	runs := visualRuns("abc αβγ")
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2: %+v", len(runs), runs)
	}
	if runs[0].text != "abc " || runs[0].script != language.Latin {
		t.Errorf("run 0 = {%q %v}", runs[0].text, runs[0].script)
	}
	if want := language.LookupScript('α'); runs[1].text != "αβγ" || runs[1].script != want {
		t.Errorf("run 1 = {%q %v}, want {%q %v}", runs[1].text, runs[1].script, "αβγ", want)
	}
}

func TestVisualRunsCommonOnly(t *testing.T) {
	// Digits and punctuation carry no concrete script; shape as Latin.
	runs := visualRuns("1234...")
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].script != language.Latin || runs[0].rtl {
		t.Errorf("run = %+v, want ltr Latin", runs[0])
	}
}

func TestSplitByScriptLeadingCommon(t *testing.T) {
	// Leading spaces join the first concrete run instead of standing alone.
	runs := splitByScript("  abc", false)
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1: %+v", len(runs), runs)
	}
	if runs[0].text != "  abc" || runs[0].script != language.Latin {
		t.Errorf("run = {%q %v}", runs[0].text, runs[0].script)
	}
}
