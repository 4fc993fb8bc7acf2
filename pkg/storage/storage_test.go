package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Retry", func() {
	var (
		ctx context.Context
		cfg RetryConfig
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = RetryConfig{Attempts: 3, Backoff: time.Millisecond}
	})

	It("returns nil on first success without retrying", func() {
		calls := 0
		err := Retry(ctx, cfg, "op", func() error {
			calls++
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("retries transient failures until success", func() {
		calls := 0
		err := Retry(ctx, cfg, "op", func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("transient")
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(3))
	})

	It("wraps the last error after exhausting the budget", func() {
		cause := errors.New("disk on fire")
		calls := 0
		err := Retry(ctx, cfg, "save record", func() error {
			calls++
			return cause
		})

		Expect(calls).To(Equal(3))

		var serr *Error
		Expect(errors.As(err, &serr)).To(BeTrue())
		Expect(serr.Op).To(Equal("save record"))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})

	It("stops immediately on permanent errors and strips the marker", func() {
		cause := errors.New("record not found")
		calls := 0
		err := Retry(ctx, cfg, "get record", func() error {
			calls++
			return Permanent(cause)
		})

		Expect(calls).To(Equal(1))
		Expect(err).To(MatchError(cause))

		var serr *Error
		Expect(errors.As(err, &serr)).To(BeFalse())
	})

	It("detects permanent errors through wrapping", func() {
		cause := errors.New("row is garbage")
		calls := 0
		err := Retry(ctx, cfg, "get record", func() error {
			calls++
			return fmt.Errorf("decoding: %w", Permanent(cause))
		})

		Expect(calls).To(Equal(1))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})

	It("treats a nil permanent error as nil", func() {
		Expect(Permanent(nil)).To(BeNil())
	})

	It("stops immediately on context errors from fn", func() {
		calls := 0
		err := Retry(ctx, cfg, "op", func() error {
			calls++
			return fmt.Errorf("query: %w", context.DeadlineExceeded)
		})

		Expect(calls).To(Equal(1))
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	})

	It("honors caller cancellation between attempts", func() {
		cancelled, cancel := context.WithCancel(ctx)

		calls := 0
		err := Retry(cancelled, cfg, "op", func() error {
			calls++
			cancel()
			return fmt.Errorf("transient")
		})

		Expect(calls).To(Equal(1))
		Expect(err).To(MatchError(context.Canceled))
	})

	It("applies defaults for a zero config", func() {
		calls := 0
		err := Retry(ctx, RetryConfig{}, "op", func() error {
			calls++
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
	})
})
