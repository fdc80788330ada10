package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"securechat/internal/domain"
)

// ErrNotFound is returned when the relay has nothing under the requested id.
var ErrNotFound = errors.New("relay: not found")

// StatusError is a non-2xx relay response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("relay %s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps 404 onto ErrNotFound.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client talks to a relay over HTTP.
type Client struct {
	Base string
	HTTP *http.Client
}

// NewClient returns a client for the relay at base. A nil hc gets a client
// with a 15 second timeout.
func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

func (c *Client) PublishKey(ctx context.Context, record domain.PublicKeyRecord) error {
	return c.do(ctx, http.MethodPost, "/keys", record, nil)
}

func (c *Client) FetchKey(ctx context.Context, id domain.IdentityID) (domain.PublicKeyRecord, error) {
	var out domain.PublicKeyRecord
	if err := c.do(ctx, http.MethodGet, "/keys/"+url.PathEscape(id.String()), nil, &out); err != nil {
		return domain.PublicKeyRecord{}, err
	}
	return out, nil
}

func (c *Client) SendDelivery(ctx context.Context, d domain.Delivery) error {
	return c.do(ctx, http.MethodPost, "/msg/"+url.PathEscape(d.To.String()), d, nil)
}

func (c *Client) FetchDeliveries(ctx context.Context, id domain.IdentityID, limit int) ([]domain.Delivery, error) {
	path := "/msg/" + url.PathEscape(id.String())
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []domain.Delivery
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AckDeliveries(ctx context.Context, id domain.IdentityID, count int) error {
	return c.do(ctx, http.MethodPost, "/msg/"+url.PathEscape(id.String())+"/ack", ackRequest{Count: count}, nil)
}

type ackRequest struct {
	Count int `json:"count"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	u := c.Base + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, URL: u, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var _ domain.RelayClient = (*Client)(nil)
