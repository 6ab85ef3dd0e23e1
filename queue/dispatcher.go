// Package queue implements the outbound dispatcher: a bounded
// concurrency, rate-limited consumer of the sms_send job queue with
// retry/backoff and error classification.
package queue

import (
	"context"
	"errors"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sms-gateway-api/db"
	"sms-gateway-api/modem"
)

const (
	defaultConcurrency = 6
	defaultRateCount   = 6
	defaultRateWindow  = 60 * time.Second
	baseBackoff        = 15 * time.Second
	circuitSnooze      = 60 * time.Second
	claimIdleWait      = 500 * time.Millisecond
)

// Sender is the subset of modem.Client the dispatcher depends on.
type Sender interface {
	SendSMS(ctx context.Context, phone, content string) (string, error)
}

// Dispatcher runs the sms_send queue consumer loop.
type Dispatcher struct {
	sender      Sender
	limiter     *rate.Limiter
	concurrency int
}

// New constructs a Dispatcher. Worker parallelism comes from
// OBAN_SMS_SEND_CONCURRENCY (default 6); the limiter enforces the
// modem's hardware rate limit from OBAN_SMS_SEND_RATE_LIMIT, given as
// "<count>/<window>" (default "6/60s"), modeled as a token bucket
// refilling at that average rate with an initial burst of count.
func New(sender Sender) *Dispatcher {
	count, window := rateLimitFromEnv("OBAN_SMS_SEND_RATE_LIMIT", defaultRateCount, defaultRateWindow)
	return &Dispatcher{
		sender:      sender,
		limiter:     rate.NewLimiter(rate.Limit(float64(count)/window.Seconds()), count),
		concurrency: concurrencyFromEnv("OBAN_SMS_SEND_CONCURRENCY", defaultConcurrency),
	}
}

func concurrencyFromEnv(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("queue: invalid %s %q, using default %d", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

// rateLimitFromEnv parses a "<count>/<window>" rate spec such as
// "6/60s", falling back to (defaultCount, defaultWindow) when key is
// unset or malformed.
func rateLimitFromEnv(key string, defaultCount int, defaultWindow time.Duration) (int, time.Duration) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultCount, defaultWindow
	}

	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		log.Printf("queue: invalid %s %q, using default %d/%s", key, raw, defaultCount, defaultWindow)
		return defaultCount, defaultWindow
	}

	count, err := strconv.Atoi(parts[0])
	if err != nil || count <= 0 {
		log.Printf("queue: invalid %s %q, using default %d/%s", key, raw, defaultCount, defaultWindow)
		return defaultCount, defaultWindow
	}

	window, err := time.ParseDuration(parts[1])
	if err != nil || window <= 0 {
		log.Printf("queue: invalid %s %q, using default %d/%s", key, raw, defaultCount, defaultWindow)
		return defaultCount, defaultWindow
	}

	return count, window
}

// Run starts concurrency workers, each independently polling for and
// executing jobs until ctx is cancelled. This bounds in-flight sends to
// at most d.concurrency simultaneous executions while the shared
// limiter bounds the start rate.
func (d *Dispatcher) Run(ctx context.Context) {
	for i := 0; i < d.concurrency; i++ {
		go d.workerLoop(ctx)
	}
}

func (d *Dispatcher) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		paused, err := db.IsQueuePaused(db.QueueSMSSend)
		if err != nil {
			log.Printf("queue: failed to read pause state: %v", err)
			time.Sleep(claimIdleWait)
			continue
		}
		if paused {
			time.Sleep(claimIdleWait)
			continue
		}

		job, err := db.ClaimNextJob(db.QueueSMSSend)
		if err != nil {
			log.Printf("queue: failed to claim job: %v", err)
			time.Sleep(claimIdleWait)
			continue
		}
		if job == nil {
			time.Sleep(claimIdleWait)
			continue
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return
		}

		d.execute(ctx, job)
	}
}

// execute runs the send-claim-classify algorithm for a single claimed job.
func (d *Dispatcher) execute(ctx context.Context, job *db.Job) {
	msg, err := db.GetMessage(job.MessageID)
	if err != nil {
		log.Printf("queue: job %d: failed to load message %s: %v", job.ID, job.MessageID, err)
		d.cancel(job, "failed to load message")
		return
	}
	if msg == nil {
		d.cancel(job, "not found")
		return
	}
	if isTerminalOrSent(msg.Status) {
		d.cancel(job, "not actionable")
		return
	}

	// A retried or snoozed job finds its message still in sending from its
	// earlier run; only a first run makes the pending|queued -> sending claim.
	if msg.Status != db.StatusSending {
		if err := db.MarkSending(job.MessageID); err != nil {
			log.Printf("queue: job %d: message %s: failed to mark sending: %v", job.ID, job.MessageID, err)
			_ = db.MarkFailed(job.MessageID, "failed to transition to sending")
			d.cancel(job, "store failure marking sending")
			return
		}
	}

	modemMessageID, sendErr := d.sender.SendSMS(ctx, msg.PhoneNumber, msg.Content)
	if sendErr == nil {
		if err := db.MarkSent(job.MessageID, modemMessageID); err != nil {
			log.Printf("queue: job %d: message %s: failed to mark sent: %v", job.ID, job.MessageID, err)
		}
		if err := db.CompleteJob(job.ID); err != nil {
			log.Printf("queue: job %d: failed to complete: %v", job.ID, err)
		}
		return
	}

	var merr *modem.Error
	if !errors.As(sendErr, &merr) {
		// Fail-safe default: treat unclassified errors as retryable.
		d.retryOrFail(job, sendErr.Error())
		return
	}

	switch merr.Kind {
	case modem.KindCircuitOpen:
		if err := db.SnoozeJob(job.ID, circuitSnooze); err != nil {
			log.Printf("queue: job %d: failed to snooze: %v", job.ID, err)
		}
	case modem.KindModemCode:
		if !merr.Retryable() {
			reason := modemCodeFailureReason(merr.Code)
			_ = db.MarkFailed(job.MessageID, reason)
			d.cancel(job, reason)
			return
		}
		d.retryOrFail(job, merr.Error())
	default:
		if !merr.Retryable() {
			_ = db.MarkFailed(job.MessageID, merr.Error())
			d.cancel(job, merr.Error())
			return
		}
		d.retryOrFail(job, merr.Error())
	}
}

func (d *Dispatcher) cancel(job *db.Job, reason string) {
	if err := db.CancelJob(job.ID, reason); err != nil {
		log.Printf("queue: job %d: failed to cancel: %v", job.ID, err)
	}
}

// retryOrFail applies exponential backoff up to maxAttempts, after
// which the message is marked failed and the job discarded.
func (d *Dispatcher) retryOrFail(job *db.Job, reason string) {
	attempt := job.Attempt + 1
	if attempt >= job.MaxAttempts {
		_ = db.MarkFailed(job.MessageID, reason)
		if err := db.DiscardJob(job.ID, reason); err != nil {
			log.Printf("queue: job %d: failed to discard: %v", job.ID, err)
		}
		return
	}

	backoff := time.Duration(float64(baseBackoff) * math.Pow(2, float64(attempt-1)))
	if err := db.RetryJob(job.ID, attempt, time.Now().UTC().Add(backoff), reason); err != nil {
		log.Printf("queue: job %d: failed to schedule retry: %v", job.ID, err)
	}
}

func isTerminalOrSent(status string) bool {
	switch status {
	case db.StatusSent, db.StatusDelivered, db.StatusFailed:
		return true
	default:
		return false
	}
}

// modemCodeFailureReason renders the operator-facing diagnostic for
// non-retryable modem application errors.
func modemCodeFailureReason(code int) string {
	switch code {
	case 114:
		return "SMS box full (114)"
	case 117:
		return "Invalid phone number (117)"
	default:
		return "Modem rejected the message"
	}
}
