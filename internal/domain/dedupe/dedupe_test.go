package dedupe_test

import (
	"context"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	dedupe "github.com/okian/raidtrack/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("Then it starts empty", func() {
			So(d, ShouldNotBeNil)
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When a bib is new", func() {
			seen := d.SeenAndRecord(ctx, 42)

			Convey("Then it is recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a bib repeats", func() {
			d.SeenAndRecord(ctx, 42)
			seen := d.SeenAndRecord(ctx, 42)

			Convey("Then it is reported as seen", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))

		Convey("The oldest bib is evicted first", func() {
			d.SeenAndRecord(ctx, 1)
			d.SeenAndRecord(ctx, 2)
			d.SeenAndRecord(ctx, 3)

			So(d.Size(), ShouldEqual, 2)
			So(d.SeenAndRecord(ctx, 3), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, 2), ShouldBeTrue)
		})

		Convey("An evicted bib reads as new again", func() {
			d.SeenAndRecord(ctx, 1)
			d.SeenAndRecord(ctx, 2)
			d.SeenAndRecord(ctx, 3)

			So(d.SeenAndRecord(ctx, 1), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 2)
		})
	})

	Convey("Given concurrent callers recording the same bibs", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for bib := 1; bib <= 100; bib++ {
					if !d.SeenAndRecord(ctx, bib) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Each bib is new exactly once", func() {
			So(fresh, ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}
