// Package worker hosts the background loops that are not part of the
// outbound dispatcher: the inbound poller, the delivery-status
// reconciler, and the status monitor.
package worker

import (
	"context"
	"log"
	"time"

	"sms-gateway-api/db"
	"sms-gateway-api/modem"
)

const inboundCursorName = "inbox"

// InboxLister is the subset of modem.Client the inbound poller depends on.
type InboxLister interface {
	ListInbox(ctx context.Context, boxType int) ([]modem.InboxMessage, error)
}

// InboundPoller runs a periodic inbox scan, de-duplicated by a
// monotonic index persisted across restarts.
type InboundPoller struct {
	client   InboxLister
	interval time.Duration
}

// NewInboundPoller constructs the poller with the given scan interval
// (30s by default in main, overridable for tests).
func NewInboundPoller(client InboxLister, interval time.Duration) *InboundPoller {
	return &InboundPoller{client: client, interval: interval}
}

// Run ticks until ctx is cancelled.
func (p *InboundPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *InboundPoller) tick(ctx context.Context) {
	lastSeen, err := db.GetInboundCursor(inboundCursorName)
	if err != nil {
		log.Printf("inbound: failed to read cursor: %v", err)
		return
	}

	messages, err := p.client.ListInbox(ctx, 1)
	if err != nil {
		// Failure of listInbox is logged; lastSeenIndex is not advanced.
		log.Printf("inbound: list inbox failed: %v", err)
		return
	}

	maxIndex := lastSeen
	inserted := 0
	for _, m := range messages {
		if m.Index <= lastSeen {
			continue
		}

		metadata := map[string]any{
			"modem_index":  m.Index,
			"modem_status": m.Status,
			"modem_date":   m.Date,
		}
		if _, err := db.CreateIncoming(m.Phone, m.Content, m.Index, metadata); err != nil {
			// A uniqueness-constraint violation here is expected and benign
			// on a restart replay; any other store error is logged.
			// Either way the cursor only advances past indices that were
			// actually persisted, so a transient failure gets retried next tick.
			log.Printf("inbound: failed to persist message at index %d: %v", m.Index, err)
			continue
		}
		inserted++
		if m.Index > maxIndex {
			maxIndex = m.Index
		}
	}

	if maxIndex > lastSeen {
		if err := db.SetInboundCursor(inboundCursorName, maxIndex); err != nil {
			log.Printf("inbound: failed to advance cursor: %v", err)
			return
		}
	}
	if inserted > 0 {
		log.Printf("inbound: persisted %d new message(s), cursor now %d", inserted, maxIndex)
	}
}
