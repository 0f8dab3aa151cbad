package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	webFetchTimeout   = 30 * time.Second
	maxWebTextRunes   = 20000
	webFetchUserAgent = "agentteam/1.0"
)

// RegisterWebTools adds web_fetch, which downloads a page and returns its
// title and readable text with markup stripped.
func RegisterWebTools(r *Registry) {
	client := &http.Client{Timeout: webFetchTimeout}
	r.Register(Tool{
		Spec: llmToolSpec("web_fetch",
			"Fetch a web page over HTTP(S) and return its title and visible text content.",
			objectSchema(map[string]any{
				"url": map[string]any{"type": "string", "description": "absolute http or https URL"},
			}, "url")),
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("web_fetch: bad arguments: %w", err)
			}
			if !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
				return "", fmt.Errorf("web_fetch: url must be http or https")
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
			if err != nil {
				return "", err
			}
			req.Header.Set("User-Agent", webFetchUserAgent)
			resp, err := client.Do(req)
			if err != nil {
				return "", fmt.Errorf("web_fetch: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("web_fetch: %s returned %d", in.URL, resp.StatusCode)
			}
			doc, err := goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				return "", fmt.Errorf("web_fetch: parse: %w", err)
			}
			doc.Find("script, style, noscript").Remove()
			title := strings.TrimSpace(doc.Find("title").First().Text())
			text := collapseWhitespace(doc.Find("body").Text())
			if runes := []rune(text); len(runes) > maxWebTextRunes {
				text = string(runes[:maxWebTextRunes]) + "\n[truncated]"
			}
			if title != "" {
				return "# " + title + "\n\n" + text, nil
			}
			return text, nil
		},
	})
}

func collapseWhitespace(s string) string {
	var sb strings.Builder
	lastBlank := true
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if !lastBlank {
				sb.WriteString("\n")
			}
			lastBlank = true
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
		lastBlank = false
	}
	return strings.TrimSpace(sb.String())
}
