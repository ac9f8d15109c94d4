package qtrcstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/qtrclabs/qtrc"
)

var (
	// ErrAlreadySubscribed is returned when a channel is subscribed twice.
	ErrAlreadySubscribed = errors.New("already subscribed")

	// ErrNotSubscribed is returned when stats are requested for a channel
	// with no subscription.
	ErrNotSubscribed = errors.New("not subscribed")
)

// Broker fans written session records out to subscribers. Publishing never
// blocks: records that a subscriber can't keep up with are counted as drops
// and skipped.
type Broker struct {
	mtx  sync.Mutex
	subs map[chan<- *qtrc.Records]*subscriber
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs: map[chan<- *qtrc.Records]*subscriber{},
	}
}

// Publish offers the records to every subscriber.
func (b *Broker) Publish(r *qtrc.Records) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if len(b.subs) <= 0 {
		return
	}

	for _, sub := range b.subs {
		select {
		case sub.records <- r:
			sub.stats.Sends++
		default:
			sub.stats.Drops++
		}
	}
}

// Stream subscribes ch to every record written while the context remains
// active, blocking until the context is done. It returns the subscriber's
// send and drop counts.
func (b *Broker) Stream(ctx context.Context, ch chan<- *qtrc.Records) (StreamStats, error) {
	if err := func() error {
		b.mtx.Lock()
		defer b.mtx.Unlock()

		if _, ok := b.subs[ch]; ok {
			return ErrAlreadySubscribed
		}

		b.subs[ch] = &subscriber{records: ch}
		return nil
	}(); err != nil {
		return StreamStats{}, err
	}

	<-ctx.Done()

	b.mtx.Lock()
	defer b.mtx.Unlock()

	sub := b.subs[ch]
	delete(b.subs, ch)

	if sub == nil {
		return StreamStats{}, fmt.Errorf("not subscribed (programmer error)")
	}

	return sub.stats, ctx.Err()
}

// SubscriberStats returns the current delivery counts for a subscribed
// channel.
func (b *Broker) SubscriberStats(ch chan<- *qtrc.Records) (StreamStats, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	sub, ok := b.subs[ch]
	if !ok {
		return StreamStats{}, ErrNotSubscribed
	}

	return sub.stats, nil
}

// StreamStats count per-subscriber delivery results.
type StreamStats struct {
	Sends int `json:"sends"`
	Drops int `json:"drops"`
}

// String implements fmt.Stringer.
func (s StreamStats) String() string {
	return fmt.Sprintf("sends=%d drops=%d", s.Sends, s.Drops)
}

type subscriber struct {
	records chan<- *qtrc.Records
	stats   StreamStats
}
