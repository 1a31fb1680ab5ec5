package kv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Replit talks the Replit Database HTTP protocol
type Replit struct {
	baseURL string
	client  *http.Client
}

// NewReplit creates a client for the database at baseURL (REPLIT_DB_URL)
func NewReplit(baseURL string) (*Replit, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}

	return &Replit{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Keys lists every key in the database
func (r *Replit) Keys(ctx context.Context) ([]string, error) {
	u := r.baseURL + "?" + url.Values{"prefix": {""}, "encode": {"true"}}.Encode()

	body, err := r.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	var keys []string
	for _, line := range strings.Split(string(body), "\n") {
		if line == "" {
			continue
		}
		key, err := url.QueryUnescape(line)
		if err != nil {
			return nil, fmt.Errorf("failed to decode key %q: %w", line, err)
		}
		keys = append(keys, key)
	}

	return keys, nil
}

func (r *Replit) Get(ctx context.Context, key string) (string, error) {
	body, err := r.do(ctx, http.MethodGet, r.keyURL(key), nil)
	if err != nil {
		return "", fmt.Errorf("failed to get %q: %w", key, err)
	}
	return string(body), nil
}

func (r *Replit) Set(ctx context.Context, key, value string) error {
	form := url.Values{key: {value}}.Encode()
	if _, err := r.do(ctx, http.MethodPost, r.baseURL, strings.NewReader(form)); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

func (r *Replit) Delete(ctx context.Context, key string) error {
	if _, err := r.do(ctx, http.MethodDelete, r.keyURL(key), nil); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

func (r *Replit) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func (r *Replit) keyURL(key string) string {
	return r.baseURL + "/" + url.PathEscape(key)
}

func (r *Replit) do(ctx context.Context, method, u string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrKeyNotFound
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return data, nil
}
