package tracking

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Unresolved is returned by Convert when an index has no counterpart.
const Unresolved = -1

// baselineLines bounds the identity mapping a new Translator starts with.
const baselineLines = 1 << 40

// segment is a run of n consecutive current lines. orig is the original
// index of the first line, or Unresolved for inserted lines.
type segment struct {
	orig int
	n    int
}

func (s segment) inserted() bool { return s.orig == Unresolved }

// Translator maps line indices between the baseline captured at creation
// (original) and the live document (current).
//
// Reads may run concurrently. Mutations come from a single writer, the
// Listener.
type Translator struct {
	mu   sync.RWMutex
	segs []segment

	// curStarts[i] is the current index of segs[i]'s first line.
	curStarts []int
	// origSegs lists the indices of non-inserted segments. Their original
	// ranges are disjoint and ascending.
	origSegs []int
}

// NewTranslator creates a translator in which every index maps to itself.
func NewTranslator() *Translator {
	t := &Translator{segs: []segment{{orig: 0, n: baselineLines}}}
	t.rebuild()
	return t
}

// InsertLines records count new lines starting at current index at. They
// have no original counterpart; lines at or after at shift down by count.
func (t *Translator) InsertLines(at, count int) {
	if at < 0 || count <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	i, k := t.locate(at)
	if i < 0 {
		return
	}
	if len(t.segs) == 0 {
		t.segs = []segment{{orig: Unresolved, n: count}}
		t.rebuild()
		return
	}

	segs := make([]segment, 0, len(t.segs)+2)
	segs = append(segs, t.segs[:i]...)
	if k > 0 {
		head, tail := split(t.segs[i], k)
		segs = append(segs, head, segment{orig: Unresolved, n: count}, tail)
	} else {
		segs = append(segs, segment{orig: Unresolved, n: count}, t.segs[i])
	}
	segs = append(segs, t.segs[i+1:]...)

	t.segs = merge(segs)
	t.rebuild()
}

// DeleteLines records that current lines [at, at+count) were removed. Their
// originals, if any, no longer resolve.
func (t *Translator) DeleteLines(at, count int) {
	if at < 0 || count <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	end := at + count
	segs := make([]segment, 0, len(t.segs)+1)
	for i, s := range t.segs {
		start := t.curStarts[i]
		stop := start + s.n
		if stop <= at || start >= end {
			segs = append(segs, s)
			continue
		}
		if start < at {
			head, _ := split(s, at-start)
			segs = append(segs, head)
		}
		if stop > end {
			_, tail := split(s, end-start)
			segs = append(segs, tail)
		}
	}

	t.segs = merge(segs)
	t.rebuild()
}

// Convert maps index i from original to current numbering when
// originalToCurrent is true, and from current to original otherwise. It
// returns Unresolved for negative, deleted, inserted or out-of-range
// indices.
func (t *Translator) Convert(i int, originalToCurrent bool) int {
	if i < 0 {
		return Unresolved
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if originalToCurrent {
		n := sort.Search(len(t.origSegs), func(j int) bool {
			s := t.segs[t.origSegs[j]]
			return s.orig+s.n > i
		})
		if n == len(t.origSegs) {
			return Unresolved
		}
		idx := t.origSegs[n]
		s := t.segs[idx]
		if i < s.orig {
			return Unresolved
		}
		return t.curStarts[idx] + i - s.orig
	}

	idx, k := t.locate(i)
	if idx < 0 || k >= t.segs[idx].n || t.segs[idx].inserted() {
		return Unresolved
	}
	return t.segs[idx].orig + k
}

// String renders the segments, e.g. "[0+2 ins:1 2+1099511627774]".
func (t *Translator) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	parts := make([]string, len(t.segs))
	for i, s := range t.segs {
		if s.inserted() {
			parts[i] = fmt.Sprintf("ins:%d", s.n)
		} else {
			parts[i] = fmt.Sprintf("%d+%d", s.orig, s.n)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// locate returns the segment holding current index cur and the offset of
// cur within it. An index one past the last line resolves to the end of
// the last segment. Returns -1 when cur is out of range.
func (t *Translator) locate(cur int) (int, int) {
	if len(t.segs) == 0 {
		if cur == 0 {
			return 0, 0
		}
		return -1, 0
	}
	i := sort.Search(len(t.curStarts), func(j int) bool {
		return t.curStarts[j] > cur
	}) - 1
	k := cur - t.curStarts[i]
	last := len(t.segs) - 1
	if i == last && k > t.segs[last].n {
		return -1, 0
	}
	return i, k
}

// rebuild recomputes the lookup caches. Caller holds t.mu.
func (t *Translator) rebuild() {
	t.curStarts = t.curStarts[:0]
	t.origSegs = t.origSegs[:0]
	cur := 0
	for i, s := range t.segs {
		t.curStarts = append(t.curStarts, cur)
		if !s.inserted() {
			t.origSegs = append(t.origSegs, i)
		}
		cur += s.n
	}
}

// split cuts s after k lines.
func split(s segment, k int) (segment, segment) {
	head := segment{orig: s.orig, n: k}
	tail := segment{orig: s.orig, n: s.n - k}
	if !s.inserted() {
		tail.orig += k
	}
	return head, tail
}

// merge joins adjacent segments that continue each other and drops empty
// ones.
func merge(segs []segment) []segment {
	out := segs[:0]
	for _, s := range segs {
		if s.n == 0 {
			continue
		}
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.inserted() && s.inserted() {
				last.n += s.n
				continue
			}
			if !last.inserted() && !s.inserted() && last.orig+last.n == s.orig {
				last.n += s.n
				continue
			}
		}
		out = append(out, s)
	}
	return out
}
