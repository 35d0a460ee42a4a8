package ports

import (
	"context"
	"time"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
)

// SourceFeed polls one upstream and normalizes it into candidate items.
// A non-zero since lets a feed drop items whose markers are all older;
// callers still apply their own recency filter.
type SourceFeed interface {
	Fetch(ctx context.Context, since time.Time) (domain.Batch, error)
}

// Store is the durable delivery ledger.
type Store interface {
	Load() domain.Record
	Save(record domain.Record) error
	MarkAndSave(key domain.DedupKey) (domain.Record, error)
}

// Classifier assigns a routing category from feed-declared tags.
type Classifier interface {
	Classify(item domain.Item) string
}

// Route is a resolved partition for an item.
type Route struct {
	Name        string
	Destination string
}

// Router maps an item to zero or one destination.
type Router interface {
	Route(item domain.Item) (Route, bool)
	// Partitions lists every partition the table knows about, in table order.
	Partitions() []Route
}

// Renderer turns an item into a chat message.
type Renderer interface {
	Render(item domain.Item) domain.Message
}

// Notifier delivers messages to chat destinations.
type Notifier interface {
	WaitReady(ctx context.Context) error
	ResolveChannel(ctx context.Context, channelID string) error
	Send(ctx context.Context, channelID string, msg domain.Message) error
}

// HistoryRecorder keeps an audit trail of confirmed deliveries.
type HistoryRecorder interface {
	RecordDelivery(ctx context.Context, delivery domain.Delivery) error
	RecentDeliveries(ctx context.Context, limit uint64) ([]domain.Delivery, error)
}

// Scheduler controls when task runs fire.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
