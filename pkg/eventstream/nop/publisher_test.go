package nop

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/eventstream"
)

var _ = Describe("Publisher", func() {
	var (
		publisher *Publisher
		ctx       context.Context
	)

	BeforeEach(func() {
		publisher = NewPublisher()
		ctx = context.Background()
	})

	It("accepts events and discards them", func() {
		Expect(publisher.PublishSessionClosed(ctx, &eventstream.SessionClosedEvent{})).To(Succeed())
		Expect(publisher.PublishSweepCompleted(ctx, &eventstream.SweepCompletedEvent{})).To(Succeed())
	})

	It("rejects nil events", func() {
		Expect(publisher.PublishSessionClosed(ctx, nil)).To(MatchError(eventstream.ErrNilEvent))
		Expect(publisher.PublishSweepCompleted(ctx, nil)).To(MatchError(eventstream.ErrNilEvent))
	})

	It("closes without error", func() {
		Expect(publisher.Close()).To(Succeed())
	})
})
