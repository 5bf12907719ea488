package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func fastPolicy(tries uint) Policy {
	return Policy{MaxTries: tries, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestDo(t *testing.T) {
	Convey("Given an operation that fails twice then succeeds", t, func() {
		calls := 0
		err := Do(context.Background(), fastPolicy(5), "test", func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

		Convey("Then it is retried until success", func() {
			So(err, ShouldBeNil)
			So(calls, ShouldEqual, 3)
		})
	})

	Convey("Given an operation that always fails", t, func() {
		calls := 0
		boom := errors.New("down")
		err := Do(context.Background(), fastPolicy(4), "test", func(context.Context) error {
			calls++
			return boom
		})

		Convey("Then it stops after MaxTries and returns the last error", func() {
			So(errors.Is(err, boom), ShouldBeTrue)
			So(calls, ShouldEqual, 4)
		})
	})

	Convey("Given an operation returning a permanent error", t, func() {
		calls := 0
		bad := errors.New("bad request")
		err := Do(context.Background(), fastPolicy(5), "test", func(context.Context) error {
			calls++
			return Permanent(bad)
		})

		Convey("Then it is not retried", func() {
			So(calls, ShouldEqual, 1)
			So(errors.Is(err, bad), ShouldBeTrue)
		})
	})

	Convey("Given a zero policy", t, func() {
		calls := 0
		_ = Do(context.Background(), Policy{}, "test", func(context.Context) error {
			calls++
			return errors.New("x")
		})

		Convey("Then the operation runs exactly once", func() {
			So(calls, ShouldEqual, 1)
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Do(ctx, Policy{MaxTries: 10, InitialInterval: time.Hour, MaxInterval: time.Hour}, "test", func(context.Context) error {
			return errors.New("transient")
		})

		Convey("Then it gives up without waiting", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestValue(t *testing.T) {
	Convey("Value returns the successful result", t, func() {
		calls := 0
		v, err := Value(context.Background(), fastPolicy(3), "test", func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, errors.New("transient")
			}
			return 42, nil
		})
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 42)
	})
}

func TestPermanent(t *testing.T) {
	Convey("Permanent keeps nil and stops retries", t, func() {
		So(Permanent(nil), ShouldBeNil)

		calls := 0
		boom := errors.New("bad request")
		err := Do(context.Background(), fastPolicy(5), "test", func(context.Context) error {
			calls++
			return Permanent(boom)
		})
		So(errors.Is(err, boom), ShouldBeTrue)
		So(calls, ShouldEqual, 1)
	})
}
