// Package biblist reads lists of bib numbers: one bib or range per line,
// "#" starting a comment.
//
//	# elite wave
//	1-120
//	1204
package biblist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// MaxRange bounds the size of a single range.
const MaxRange = 100000

// Sentinel kinds for bib list errors.
var (
	ErrInvalidEntry = errors.New("invalid bib list entry")
	ErrRange        = errors.New("invalid bib range")
)

// Parse reads every bib of r in order of appearance. Repeats are kept.
func Parse(r io.Reader) ([]int, error) {
	var out []int
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t'
		}) {
			bibs, err := parseToken(tok)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			out = append(out, bibs...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFile parses the bib list at path.
func ReadFile(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bibs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bibs, nil
}

// Range returns from..to inclusive.
func Range(from, to int) ([]int, error) {
	if from <= 0 || to < from {
		return nil, fmt.Errorf("%w: %d-%d", ErrRange, from, to)
	}
	if to-from+1 > MaxRange {
		return nil, fmt.Errorf("%w: %d-%d spans more than %d bibs", ErrRange, from, to, MaxRange)
	}
	out := make([]int, 0, to-from+1)
	for bib := from; bib <= to; bib++ {
		out = append(out, bib)
	}
	return out, nil
}

func parseToken(tok string) ([]int, error) {
	if lo, hi, ok := strings.Cut(tok, "-"); ok {
		from, err1 := strconv.Atoi(strings.TrimSpace(lo))
		to, err2 := strconv.Atoi(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEntry, tok)
		}
		return Range(from, to)
	}
	bib, err := strconv.Atoi(tok)
	if err != nil || bib <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntry, tok)
	}
	return []int{bib}, nil
}
