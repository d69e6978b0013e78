// Package httpop provides HTTP requests as [coop.Task]s.
//
// A request is performed on its own goroutine by an ordinary [http.Client].
// The task returned by [Get] merely polls for the outcome, so a
// [coop.Scheduler] keeps running other tasks while the request is in flight.
package httpop

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/b97tsk/coop"
	"github.com/hashicorp/go-cleanhttp"
)

// DefaultTimeout is the timeout of requests made with the default client.
const DefaultTimeout = 10 * time.Second

// A Response is a completed HTTP response with its body read in full.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// A StatusError is the failure of a request whose response status is not
// 2xx. The response is kept so callers can inspect it.
type StatusError struct {
	URL      string
	Status   string
	Response *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpop: GET %s: %s", e.URL, e.Status)
}

type options struct {
	client  *http.Client
	timeout time.Duration
	header  http.Header
}

// An Option configures a request.
type Option func(*options)

// WithClient makes the request use client instead of a default
// go-cleanhttp client.
func WithClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.client = client
		}
	}
}

// WithTimeout sets the timeout of the default client.
// It has no effect when combined with [WithClient].
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.header.Add(key, value)
	}
}

// Get returns a [coop.Task] that performs a GET request for url.
//
// The request starts the first time the task is advanced. The task
// succeeds with the [Response] if the status is 2xx, and fails with
// a *[StatusError] otherwise. Transport errors are failures too.
//
// Canceling ctx cancels the request. Abandoning the task does not;
// the request then runs to completion and its result is discarded.
func Get(ctx context.Context, url string, opts ...Option) coop.Task[*Response] {
	o := options{timeout: DefaultTimeout, header: make(http.Header)}
	for _, opt := range opts {
		opt(&o)
	}

	client := o.client
	if client == nil {
		client = cleanhttp.DefaultClient()
		client.Timeout = o.timeout
	}

	return coop.External("GET "+url, coop.Go(func() (*Response, error) {
		return get(ctx, client, url, o.header)
	}))
}

func get(ctx context.Context, client *http.Client, url string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	r := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, Status: resp.Status, Response: r}
	}

	return r, nil
}
