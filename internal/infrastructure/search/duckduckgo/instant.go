package duckduckgo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// InstantAnswer queries the DuckDuckGo instant answer JSON API.
type InstantAnswer struct {
	client *Client
}

func (p *InstantAnswer) Name() string {
	return "DuckDuckGo Instant Answer"
}

func (p *InstantAnswer) Lookup(ctx context.Context, query string) (string, bool, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	raw, err := p.client.get(ctx, p.client.cfg.InstantURL+"?"+params.Encode())
	if err != nil {
		return "", false, err
	}

	var body struct {
		AbstractText string `json:"AbstractText"`
		Definition   string `json:"Definition"`
		Answer       any    `json:"Answer"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", false, fmt.Errorf("decode instant answer: %w", err)
	}

	answer, _ := body.Answer.(string)
	for _, candidate := range []string{body.AbstractText, body.Definition, answer} {
		if text := p.client.sanitize(candidate); text != "" {
			return text, true, nil
		}
	}
	return "", false, nil
}
