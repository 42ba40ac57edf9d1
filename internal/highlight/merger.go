// Package highlight reconciles highlighted fragments, e.g. "<em>foo</em> bar".
package highlight

import (
	"sort"
	"strings"
	"unicode"
)

// Interval is a highlighted span [Start, End) within plain text.
type Interval struct {
	Start int
	End   int
}

// MergeIntervals sorts intervals by start and merges every interval that starts at or
// before the end of the previous one plus one, so a gap of one character is contiguous.
func MergeIntervals(intervals []Interval) []Interval {
	return mergeIntervals(intervals, func(int) bool { return true })
}

// mergeIntervals merges overlapping intervals and, when bridge allows the single
// character at the given offset, intervals separated by exactly one character.
func mergeIntervals(intervals []Interval, bridge func(gap int) bool) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := append([]Interval(nil), intervals...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	stack := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		top := &stack[len(stack)-1]
		if iv.Start <= top.End || (iv.Start == top.End+1 && bridge(top.End)) {
			if iv.End > top.End {
				top.End = iv.End
			}
			continue
		}
		stack = append(stack, iv)
	}
	return stack
}

// MergeContiguous joins highlighted spans of html that are separated only by markup or a
// single whitespace character: "<em>foo</em><em>bar</em>" becomes "<em>foobar</em>".
func MergeContiguous(html, tag string) string {
	plain, intervals := parse(html, tag)
	return render(plain, mergeIn(plain, intervals), tag)
}

// MergeTwo combines the highlights of two renderings of the same text. Spans one
// non-space character apart stay separate. If the plain texts differ, h1 is returned unchanged.
func MergeTwo(h1, h2, tag string) string {
	p1, iv1 := parse(h1, tag)
	p2, iv2 := parse(h2, tag)
	if p1 != p2 {
		return h1
	}
	return render(p1, mergeIn(p1, append(iv1, iv2...)), tag)
}

// MergeList merges two lists of fragments keyed by their plain text. Fragments present in
// both lists are merged with MergeTwo; the others pass through. Order follows first
// appearance, list1 before list2.
func MergeList(list1, list2 []string, tag string) []string {
	if len(list1) == 0 && len(list2) == 0 {
		return nil
	}
	out := make([]string, 0, len(list1)+len(list2))
	index := make(map[string]int, len(list1)+len(list2))
	add := func(h string) {
		key := PlainText(h, tag)
		if i, ok := index[key]; ok {
			out[i] = MergeTwo(out[i], h, tag)
			return
		}
		index[key] = len(out)
		out = append(out, h)
	}
	for _, h := range list1 {
		add(h)
	}
	for _, h := range list2 {
		add(h)
	}
	return out
}

// PlainText strips the open and close markers of tag from html.
func PlainText(html, tag string) string {
	plain, _ := parse(html, tag)
	return plain
}

func mergeIn(plain string, intervals []Interval) []Interval {
	return mergeIntervals(intervals, func(gap int) bool {
		return gap < len(plain) && unicode.IsSpace(rune(plain[gap]))
	})
}

// parse strips tag markup and returns the plain text with the highlighted intervals.
// Offsets are byte offsets into the plain text. An unclosed tag runs to the end.
func parse(html, tag string) (string, []Interval) {
	open, closing := "<"+tag+">", "</"+tag+">"
	var (
		b         strings.Builder
		intervals []Interval
		start     = -1
	)
	b.Grow(len(html))
	for i := 0; i < len(html); {
		switch {
		case strings.HasPrefix(html[i:], open):
			if start < 0 {
				start = b.Len()
			}
			i += len(open)
		case strings.HasPrefix(html[i:], closing):
			if start >= 0 && b.Len() > start {
				intervals = append(intervals, Interval{Start: start, End: b.Len()})
			}
			start = -1
			i += len(closing)
		default:
			b.WriteByte(html[i])
			i++
		}
	}
	if start >= 0 && b.Len() > start {
		intervals = append(intervals, Interval{Start: start, End: b.Len()})
	}
	return b.String(), intervals
}

// render wraps the sorted, disjoint intervals of plain in tag markup.
func render(plain string, intervals []Interval, tag string) string {
	if len(intervals) == 0 {
		return plain
	}
	open, closing := "<"+tag+">", "</"+tag+">"
	var b strings.Builder
	b.Grow(len(plain) + len(intervals)*(len(open)+len(closing)))
	pos := 0
	for _, iv := range intervals {
		b.WriteString(plain[pos:iv.Start])
		b.WriteString(open)
		b.WriteString(plain[iv.Start:iv.End])
		b.WriteString(closing)
		pos = iv.End
	}
	b.WriteString(plain[pos:])
	return b.String()
}
