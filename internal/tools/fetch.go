// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/golem-tui/internal/hive"
	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// URL FETCH TOOL
// =============================================================================

const (
	fetchTimeout      = 15 * time.Second
	maxFetchBodyBytes = 1 << 20 // 1MB read cap
	maxFetchChars     = 4000    // text fed to the model
)

// blockedCIDRs are address ranges fetch_url refuses to touch. The model
// chooses the URL, so private and loopback ranges must be off limits
// (SSRF guard).
var blockedCIDRs = func() []*net.IPNet {
	ranges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"0.0.0.0/8",
		"100.64.0.0/10",
		"224.0.0.0/4",
		"240.0.0.0/4",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	}
	nets := make([]*net.IPNet, 0, len(ranges))
	for _, r := range ranges {
		if _, n, err := net.ParseCIDR(r); err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}()

// isBlockedIP reports whether an address falls in a blocked range.
func isBlockedIP(ip net.IP) bool {
	for _, n := range blockedCIDRs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// fetchClient refuses connections to blocked addresses at dial time, so
// DNS rebinding cannot bypass the URL-level check.
var fetchClient = &http.Client{
	Timeout: fetchTimeout,
	Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
			if err != nil {
				return nil, err
			}
			for _, ip := range ips {
				if isBlockedIP(ip) {
					return nil, fmt.Errorf("address %s is not allowed", ip)
				}
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
		},
	},
}

func handleFetchURL(ctx context.Context, call Call) (string, error) {
	raw := call.GetString("url", "")
	if raw == "" {
		return "error: url is required", nil
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "error: only http and https URLs are supported", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Sprintf("error: %v", err), nil
	}
	req.Header.Set("User-Agent", "golem/0.3")
	req.Header.Set("Accept", "text/html, text/plain, application/json")

	resp, err := fetchClient.Do(req)
	if err != nil {
		return fmt.Sprintf("error: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("error: HTTP %d", resp.StatusCode), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBodyBytes))
	if err != nil {
		return fmt.Sprintf("error: %v", err), nil
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		text = htmlToText(text)
	}
	if len(text) > maxFetchChars {
		text = util.TruncateBytes(text, maxFetchChars) + "\n...(truncated)"
	}
	return text, nil
}

// =============================================================================
// WEB SEARCH TOOL
// =============================================================================

const maxSearchResults = 8

// registerWebSearch adds the web_search tool backed by the hive's
// search endpoint.
func (r *Registry) registerWebSearch(client *hive.Client) {
	r.Register(&ToolDef{
		Name:        "web_search",
		Description: "Search the web through the hive server and return titled results with URLs",
		Parameters: params(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search query"}
			},
			"required": ["query"]
		}`),
		Handler: func(ctx context.Context, call Call) (string, error) {
			query := call.GetString("query", "")
			if query == "" {
				return "error: query is required", nil
			}
			results, err := client.WebSearch(ctx, query, maxSearchResults)
			if err != nil {
				return fmt.Sprintf("error: %v", err), nil
			}
			return FormatSearchResults(results), nil
		},
	})
}

// FormatSearchResults renders search results the way the model sees
// them: numbered title, URL, and snippet per entry.
func FormatSearchResults(results []hive.SearchResult) string {
	if len(results) == 0 {
		return "no results found"
	}

	var sb strings.Builder
	for i, res := range results {
		title := res.Title
		if title == "" {
			title = "(no title)"
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, title, res.URL)
		if res.Snippet != "" {
			sb.WriteString("   " + res.Snippet + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// =============================================================================
// HTML TEXT EXTRACTION
// =============================================================================

var (
	scriptPattern = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	blankPattern  = regexp.MustCompile(`\n{3,}`)
)

// htmlToText strips markup for a readable plain-text rendering. This is
// a crude extraction, not an HTML parser; good enough for feeding page
// text to a model.
func htmlToText(html string) string {
	text := scriptPattern.ReplaceAllString(html, "")
	text = tagPattern.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		lines = append(lines, line)
	}
	return strings.TrimSpace(blankPattern.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
