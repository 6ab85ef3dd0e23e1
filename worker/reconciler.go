package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"sms-gateway-api/db"
	"sms-gateway-api/modem"
)

const (
	reconcileInterval  = 5 * time.Minute
	reconcileAge       = 5 * time.Minute
	reconcileFanout    = 3 // sms_status queue concurrency cap
)

// StatusLooker is the subset of modem.Client the reconciler depends on.
type StatusLooker interface {
	GetStatus(ctx context.Context, modemMessageID string) (modem.DeliveryStatus, error)
}

// Reconciler periodically looks up delivery status for
// messages sent more than 5 minutes ago and not yet in a final state.
type Reconciler struct {
	client StatusLooker
}

func NewReconciler(client StatusLooker) *Reconciler {
	return &Reconciler{client: client}
}

func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	candidates, err := db.PendingReconciliation(reconcileAge)
	if err != nil {
		log.Printf("reconciler: failed to load candidates: %v", err)
		return
	}

	sem := make(chan struct{}, reconcileFanout)
	var wg sync.WaitGroup
	for _, msg := range candidates {
		msg := msg
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			r.reconcileOne(ctx, msg)
		}()
	}
	wg.Wait()
}

func (r *Reconciler) reconcileOne(ctx context.Context, msg db.Message) {
	if msg.ModemMessageID == nil {
		return
	}

	status, err := r.client.GetStatus(ctx, *msg.ModemMessageID)
	if err != nil {
		var merr *modem.Error
		if errors.As(err, &merr) && merr.Kind == modem.KindCircuitOpen {
			// Circuit open: abandon this cycle silently.
			return
		}
		log.Printf("reconciler: message %s: status lookup failed: %v", msg.ID, err)
		return
	}

	switch status {
	case modem.StatusDelivered:
		if err := db.MarkDelivered(msg.ID); err != nil {
			log.Printf("reconciler: message %s: failed to mark delivered: %v", msg.ID, err)
		}
	case modem.StatusFailed:
		if err := db.MarkFailed(msg.ID, "Delivery failed (modem reported)"); err != nil {
			log.Printf("reconciler: message %s: failed to mark failed: %v", msg.ID, err)
		}
	case modem.StatusPending:
		// Leave untouched; next cycle retries.
	default:
		// unknown: leave untouched, same as pending.
	}
}
