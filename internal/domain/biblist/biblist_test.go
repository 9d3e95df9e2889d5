package biblist

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParse(t *testing.T) {
	Convey("Given a bib list with comments and ranges", t, func() {
		input := `# elite wave
12
100-103   # first block

7, 9
12
`
		bibs, err := Parse(strings.NewReader(input))

		Convey("Bibs come back in order with ranges expanded", func() {
			So(err, ShouldBeNil)
			So(bibs, ShouldResemble, []int{12, 100, 101, 102, 103, 7, 9, 12})
		})
	})

	Convey("An invalid entry reports its line", t, func() {
		_, err := Parse(strings.NewReader("1\nabc\n"))
		So(errors.Is(err, ErrInvalidEntry), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "line 2")
	})

	Convey("Zero and reversed ranges are rejected", t, func() {
		_, err := Parse(strings.NewReader("0\n"))
		So(errors.Is(err, ErrInvalidEntry), ShouldBeTrue)

		_, err = Parse(strings.NewReader("20-10\n"))
		So(errors.Is(err, ErrRange), ShouldBeTrue)
	})

	Convey("An empty list is valid", t, func() {
		bibs, err := Parse(strings.NewReader("# nothing yet\n\n"))
		So(err, ShouldBeNil)
		So(bibs, ShouldBeEmpty)
	})
}

func TestRange(t *testing.T) {
	Convey("Range is inclusive", t, func() {
		bibs, err := Range(5, 7)
		So(err, ShouldBeNil)
		So(bibs, ShouldResemble, []int{5, 6, 7})
	})

	Convey("Oversized ranges are rejected", t, func() {
		_, err := Range(1, MaxRange+1)
		So(errors.Is(err, ErrRange), ShouldBeTrue)
	})
}

func TestReadFile(t *testing.T) {
	Convey("ReadFile parses a file from disk", t, func() {
		path := filepath.Join(t.TempDir(), "bibs.txt")
		So(os.WriteFile(path, []byte("1-3\n"), 0o644), ShouldBeNil)
		bibs, err := ReadFile(path)
		So(err, ShouldBeNil)
		So(bibs, ShouldResemble, []int{1, 2, 3})
	})

	Convey("A missing file is an error", t, func() {
		_, err := ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
		So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
	})
}
