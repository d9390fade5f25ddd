// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import (
	"github.com/go-text/typesetting/language"
	"golang.org/x/text/unicode/bidi"
)

// textRun is a maximal piece of one line the shaper can take in a
// single call: uniform direction and script. The text stays in logical
// order; runs are sequenced in visual order, leftmost first.
type textRun struct {
	text   string
	rtl    bool
	script language.Script
}

// drawText returns the run's content in left-to-right draw order.
// Joining scripts come out in isolated forms; the rasterizer has no
// glyph substitution.
func (r textRun) drawText() string {
	if r.rtl {
		return bidi.ReverseString(r.text)
	}
	return r.text
}

var (
	scriptCommon    = language.LookupScript(' ')
	scriptInherited = language.LookupScript('̀')
)

// visualRuns splits one line for shaping. Bidirectional ordering
// follows UAX #9: the base direction comes from the first strong
// character, and the returned runs read left to right on screen. Each
// bidi run is further cut where the script changes; common and
// inherited characters stay with the run they extend.
func visualRuns(line string) []textRun {
	if line == "" {
		return nil
	}

	var p bidi.Paragraph
	if _, err := p.SetString(line); err != nil {
		return wholeLineRun(line)
	}
	ordering, err := p.Order()
	if err != nil {
		return wholeLineRun(line)
	}

	var runs []textRun
	for i := 0; i < ordering.NumRuns(); i++ {
		run := ordering.Run(i)
		rtl := run.Direction() == bidi.RightToLeft
		runs = append(runs, splitByScript(run.String(), rtl)...)
	}
	return runs
}

// wholeLineRun treats the line as one left-to-right run, the shape of
// text this renderer existed for before it learned bidi.
func wholeLineRun(line string) []textRun {
	return []textRun{{text: line, script: detectScript([]rune(line))}}
}

// splitByScript cuts s at concrete script changes. A run with no
// concrete script at all (digits, punctuation) shapes as Latin.
func splitByScript(s string, rtl bool) []textRun {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}

	var runs []textRun
	cur := scriptCommon
	start := 0
	for i, r := range runes {
		sc := language.LookupScript(r)
		if sc == scriptCommon || sc == scriptInherited || sc == cur {
			continue
		}
		if cur == scriptCommon {
			cur = sc
			continue
		}
		runs = append(runs, textRun{text: string(runes[start:i]), rtl: rtl, script: cur})
		start, cur = i, sc
	}
	if cur == scriptCommon {
		cur = language.Latin
	}
	return append(runs, textRun{text: string(runes[start:]), rtl: rtl, script: cur})
}
