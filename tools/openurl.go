// Open URL tool - fetches a web page so the model can read its full
// contents.
//
// Information Hiding:
// - HTTP client implementation details hidden
// - Response truncation and title extraction
// - Domain allowlist enforcement

package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mwielandt/tern/llm"
	"github.com/mwielandt/tern/model"
)

// maxFetchedBodyBytes caps how much of a fetched page is returned to the
// model.
const maxFetchedBodyBytes = 50_000

// OpenURLTool fetches the contents of a URL. Its results are citeable:
// the fetched page is surfaced as a search document.
type OpenURLTool struct {
	id             int
	client         *http.Client
	allowedDomains []string
}

// NewOpenURLTool creates an open-URL tool with the given request timeout.
func NewOpenURLTool(id int, timeout time.Duration) *OpenURLTool {
	return &OpenURLTool{
		id: id,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithAllowedDomains restricts requests to the given domains and their
// subdomains. Empty means all domains are allowed.
func (t *OpenURLTool) WithAllowedDomains(domains []string) *OpenURLTool {
	t.allowedDomains = domains
	return t
}

// Name returns the tool name.
func (t *OpenURLTool) Name() string { return NameOpenURL }

// ID returns the persisted tool id.
func (t *OpenURLTool) ID() int { return t.id }

// Definition returns the function declaration for the model.
func (t *OpenURLTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: NameOpenURL,
		Description: "Fetch and read the full contents of a web page. Use this to follow up on " +
			"promising web search results, since search snippets are often incomplete.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL of the page to open",
				},
			},
			"required": []string{"url"},
		},
	}
}

// Run fetches the page and returns its text with the page surfaced as a
// citeable document.
func (t *OpenURLTool) Run(ctx context.Context, args map[string]any) (Response, error) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return Response{}, fmt.Errorf("url argument is required")
	}

	if !t.isDomainAllowed(rawURL) {
		return Response{
			LLMFacingResponse: fmt.Sprintf("Access to the domain in %q is not allowed.", rawURL),
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchedBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{
			LLMFacingResponse: fmt.Sprintf("HTTP error opening %s: %s", rawURL, resp.Status),
		}, nil
	}

	text := string(body)
	title := extractHTMLTitle(text)
	if title == "" {
		title = rawURL
	}

	doc := model.SearchDoc{
		DocumentID: rawURL,
		Title:      title,
		Link:       rawURL,
		Blurb:      blurbOf(text),
		SourceType: "web",
	}

	return Response{
		LLMFacingResponse: fmt.Sprintf("Contents of %s:\n\n%s", rawURL, text),
		Rich: SearchDocsResponse{
			SearchDocs: []model.SearchDoc{doc},
		},
	}, nil
}

// isDomainAllowed checks the URL's host against the allowlist. Uses
// proper URL parsing to prevent bypass attacks.
func (t *OpenURLTool) isDomainAllowed(rawURL string) bool {
	if len(t.allowedDomains) == 0 {
		return true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())

	for _, domain := range t.allowedDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// extractHTMLTitle pulls the <title> text out of an HTML document, or ""
// if none is found.
func extractHTMLTitle(body string) string {
	lower := strings.ToLower(body)
	start := strings.Index(lower, "<title")
	if start < 0 {
		return ""
	}
	open := strings.Index(lower[start:], ">")
	if open < 0 {
		return ""
	}
	start += open + 1
	end := strings.Index(lower[start:], "</title>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(body[start : start+end])
}

// blurbOf returns the document preview, cut on a rune boundary so
// multi-byte characters are never split.
func blurbOf(text string) string {
	const max = 200
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

var _ Tool = (*OpenURLTool)(nil)
