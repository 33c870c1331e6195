// Package latepoint is the client for the booking plugin's REST API
// (wp-json/latepoint-telegram/v1). Every call returns a Result envelope;
// transport failures and non-2xx statuses map to Success=false rather than a
// Go error, because the callers treat the upstream as best-effort.
package latepoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"latebot/internal/event"
	logx "latebot/pkg/logx"
)

// Schedule periods accepted by the /schedule endpoint.
const (
	PeriodToday = "today"
	PeriodWeek  = "week"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	base string
	http *http.Client
	log  logx.Logger
}

// Result is the common response envelope.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ScheduleResult struct {
	Result
	Bookings []event.Booking `json:"bookings"`
}

type BookingResult struct {
	Result
	Booking *event.Booking `json:"booking"`
}

type RegisterResult struct {
	Result
	UserType    string `json:"user_type"`
	WPUserID    int64  `json:"wp_user_id"`
	LatePointID int64  `json:"latepoint_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
}

func New(cfg Config, log logx.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// Register redeems a registration token for a chat id.
func (c *Client) Register(ctx context.Context, token string, chatID int64, username string) RegisterResult {
	var out RegisterResult
	body := map[string]string{
		"token":    token,
		"chat_id":  strconv.FormatInt(chatID, 10),
		"username": username,
	}
	c.postJSON(ctx, "/register", body, &out)
	return out
}

// Schedule fetches a chat's bookings for a period ("today" or "week").
func (c *Client) Schedule(ctx context.Context, chatID int64, period string) ScheduleResult {
	var out ScheduleResult
	q := url.Values{"chat_id": {strconv.FormatInt(chatID, 10)}}
	if period != "" {
		q.Set("period", period)
	}
	c.getJSON(ctx, "/schedule?"+q.Encode(), &out)
	return out
}

// Booking fetches one booking's details.
func (c *Client) Booking(ctx context.Context, bookingID, chatID int64) BookingResult {
	var out BookingResult
	q := url.Values{"chat_id": {strconv.FormatInt(chatID, 10)}}
	c.getJSON(ctx, fmt.Sprintf("/booking/%d?%s", bookingID, q.Encode()), &out)
	return out
}

// SetStatus mutates a booking's status on behalf of a chat.
func (c *Client) SetStatus(ctx context.Context, bookingID, chatID int64, newStatus string) Result {
	var out Result
	body := map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
		"status":  newStatus,
	}
	c.postJSON(ctx, fmt.Sprintf("/booking/%d/status", bookingID), body, &out)
	return out
}

// failer lets the shared request helpers stamp a failure onto any result
// type that embeds Result.
type failer interface{ fail(msg string) }

func (r *Result) fail(msg string) {
	r.Success = false
	r.Message = msg
}

func (c *Client) getJSON(ctx context.Context, path string, out failer) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		out.fail(err.Error())
		return
	}
	c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out failer) {
	b, err := json.Marshal(body)
	if err != nil {
		out.fail(err.Error())
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		out.fail(err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")
	c.do(req, out)
}

func (c *Client) do(req *http.Request, out failer) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("upstream request failed", logx.String("url", req.URL.Path), logx.Err(err))
		out.fail(err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.log.Warn("upstream server error", logx.String("url", req.URL.Path), logx.Int("status", resp.StatusCode))
		out.fail(fmt.Sprintf("server error: %d", resp.StatusCode))
		return
	}
	if resp.StatusCode >= 400 {
		// Client errors usually carry a message in the body envelope.
		var env Result
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err == nil && env.Message != "" {
			out.fail(env.Message)
			return
		}
		out.fail(fmt.Sprintf("client error: %d", resp.StatusCode))
		return
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(out); err != nil {
		c.log.Warn("upstream returned invalid JSON", logx.String("url", req.URL.Path), logx.Err(err))
		out.fail("invalid JSON response")
	}
}
