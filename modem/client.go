package modem

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

const requestTimeout = 10 * time.Second

// Config holds the modem client's connection parameters.
type Config struct {
	BaseURL string
}

// InboxMessage is a single entry returned by ListInbox.
type InboxMessage struct {
	Index   int
	Phone   string
	Content string
	Date    string
	Status  string
}

// DeliveryStatus is the normalized result of GetStatus.
type DeliveryStatus string

const (
	StatusPending    DeliveryStatus = "pending"
	StatusSent       DeliveryStatus = "sent"
	StatusDelivered  DeliveryStatus = "delivered"
	StatusFailed     DeliveryStatus = "failed"
	StatusUnknown    DeliveryStatus = "unknown"
)

// HealthReport is the result of a successful HealthCheck.
type HealthReport struct {
	SignalStrength   int
	NetworkType      string
	NetworkName      string
	BatteryLevel     int
	ConnectionStatus string
}

// Client is the sole owner of every interaction with the modem's HTTP
// endpoint. One Client should be constructed per process and shared
// across all callers, since the circuit breaker and session cache are
// meant to be process-wide, explicitly constructed and injected rather
// than kept as package-level state.
type Client struct {
	baseURL string
	host    string
	http    *http.Client
	session *sessionCache
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// New constructs a Client against the given base URL, wiring a
// sony/gobreaker/v2 circuit breaker: open after 5 consecutive failures,
// half-open probe after 5 minutes.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid modem base url: %w", err)
	}

	settings := gobreaker.Settings{
		Name:        "modem",
		MaxRequests: 1, // single probe while half-open
		Interval:    0,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		host:    u.Host,
		http:    &http.Client{Timeout: requestTimeout},
		session: newSessionCache(),
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}, nil
}

// SendSMS submits an outbound SMS and returns the modem-assigned
// message id, or a classified Error.
func (c *Client) SendSMS(ctx context.Context, phone, content string) (string, error) {
	body := sendRequest{
		Index:    "-1",
		Phones:   sendPhones{Phone: phone},
		Content:  content,
		Length:   len(content),
		Reserved: "1",
		Date:     time.Now().UTC().Format("2006-01-02 15:04:05"),
	}
	payload, err := xml.Marshal(body)
	if err != nil {
		return "", errParse("failed to encode send request", err)
	}
	payload = append([]byte(xml.Header), payload...)

	respBody, err := c.doAuthenticated(ctx, http.MethodPost, "/api/sms/send-sms", payload)
	if err != nil {
		return "", err
	}

	var resp sendResponse
	if err := xml.Unmarshal(respBody, &resp); err != nil {
		return "", errParse("failed to decode send response", err)
	}
	if resp.MessageID == "" {
		if resp.Code != "" {
			code, convErr := strconv.Atoi(resp.Code)
			if convErr != nil {
				return "", errParse("modem returned non-numeric error code", convErr)
			}
			return "", errModemCode(code, resp.Message)
		}
		return "", errParse("send response missing message_id", nil)
	}
	return resp.MessageID, nil
}

// ListInbox returns the inbox contents for the given box type
// (1 = local inbox).
func (c *Client) ListInbox(ctx context.Context, boxType int) ([]InboxMessage, error) {
	path := fmt.Sprintf("/api/sms/sms-list?boxtype=%d", boxType)
	respBody, err := c.doAuthenticated(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := xml.Unmarshal(respBody, &resp); err != nil {
		return nil, errParse("failed to decode list response", err)
	}

	out := make([]InboxMessage, 0, len(resp.Messages.Messages))
	for _, m := range resp.Messages.Messages {
		out = append(out, InboxMessage{
			Index:   m.Index,
			Phone:   m.Phone,
			Content: m.Content,
			Date:    m.Date,
			Status:  m.Status,
		})
	}
	return out, nil
}

// GetStatus looks up the delivery status of a previously sent message.
func (c *Client) GetStatus(ctx context.Context, modemMessageID string) (DeliveryStatus, error) {
	path := fmt.Sprintf("/api/sms/status?message_id=%s", url.QueryEscape(modemMessageID))
	respBody, err := c.doAuthenticated(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}

	var resp statusResponse
	if err := xml.Unmarshal(respBody, &resp); err != nil {
		return "", errParse("failed to decode status response", err)
	}

	status := strings.ToLower(strings.TrimSpace(resp.Status))
	if status == "" {
		return "", errParse("status response missing status", nil)
	}
	switch status {
	case "delivered":
		return StatusDelivered, nil
	case "sent":
		return StatusSent, nil
	case "pending":
		return StatusPending, nil
	case "failed":
		return StatusFailed, nil
	default:
		return StatusUnknown, nil
	}
}

// HealthCheck reports the modem's current radio/battery state.
func (c *Client) HealthCheck(ctx context.Context) (*HealthReport, error) {
	respBody, err := c.doAuthenticated(ctx, http.MethodGet, "/api/monitoring/status", nil)
	if err != nil {
		return nil, err
	}

	var resp healthResponse
	if err := xml.Unmarshal(respBody, &resp); err != nil {
		return nil, errParse("failed to decode health response", err)
	}

	signal, _ := strconv.Atoi(resp.SignalStrength)
	battery, _ := strconv.Atoi(resp.BatteryLevel)

	return &HealthReport{
		SignalStrength:   signal,
		NetworkType:      resp.NetworkType,
		NetworkName:      resp.NetworkName,
		BatteryLevel:     battery,
		ConnectionStatus: resp.ConnectionStatus,
	}, nil
}

// doAuthenticated performs the session handshake (if needed), sends the
// request through the circuit breaker, and returns the raw response
// body. Failures inside the call (session handshake, transport, non-2xx
// status, unreadable body) count toward the consecutive-failure
// threshold. Decoding of the response XML happens in the public
// operations after this returns, so a well-formed 2xx response that then
// fails to decode does not count as a breaker failure.
func (c *Client) doAuthenticated(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	respBody, err := c.breaker.Execute(func() ([]byte, error) {
		sess, err := c.session.get(func() (*session, error) {
			return c.fetchSession(ctx)
		})
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytesReader(body))
		if err != nil {
			return nil, errParse("failed to build request", err)
		}
		req.Header.Set("Cookie", sess.cookie)
		req.Header.Set("__RequestVerificationToken", sess.token)
		req.Header.Set("Host", c.host)
		if body != nil {
			req.Header.Set("Content-Type", "application/xml")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if isTimeout(err) {
				return nil, errTimeout(err)
			}
			return nil, errHTTP(0, err.Error())
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errParse("failed to read response body", err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			// Session likely expired server-side ahead of our TTL; force a
			// fresh handshake for the next call. This call still fails with
			// the 401 http error, which is not retryable.
			c.session.invalidate()
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, errHTTP(resp.StatusCode, string(raw))
		}

		return raw, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errCircuitOpen()
		}
		return nil, err
	}
	return respBody, nil
}

func (c *Client) fetchSession(ctx context.Context) (*session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/webserver/SesTokInfo", nil)
	if err != nil {
		return nil, errParse("failed to build session request", err)
	}
	req.Header.Set("Host", c.host)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, errTimeout(err)
		}
		return nil, errHTTP(0, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errParse("failed to read session response body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errHTTP(resp.StatusCode, string(raw))
	}

	var parsed sesTokInfoResponse
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return nil, errParse("failed to decode session response", err)
	}
	if parsed.SesInfo == "" || parsed.TokInfo == "" {
		return nil, errParse("session response missing SesInfo/TokInfo", nil)
	}

	return &session{cookie: parsed.SesInfo, token: parsed.TokInfo}, nil
}

func bytesReader(b []byte) io.Reader {
	if b == nil {
		return nil
	}
	return bytes.NewReader(b)
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	if t, ok := err.(timeouter); ok {
		return t.Timeout()
	}
	if err == context.DeadlineExceeded {
		return true
	}
	return false
}
