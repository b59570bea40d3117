// pkg/linking/client.go
package linking

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

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultBaseURL is the public entity-fishing instance operated by
	// Huma-Num.
	DefaultBaseURL = "http://nerd.huma-num.fr/nerd/service"

	// DefaultLanguage matches the language the service is most often
	// queried with in this corpus.
	DefaultLanguage = "fr"

	// SourceName tags entities resolved through this client.
	SourceName = "entity-fishing"
)

const defaultTimeout = 30 * time.Second

// Config controls the entity-fishing client.
type Config struct {
	// BaseURL is the service root, e.g. http://nerd.huma-num.fr/nerd/service.
	BaseURL string

	// Language is the lookup language used when a mention carries none.
	Language string

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after a failed
	// one. Only network errors and 5xx responses are retried.
	MaxRetries int

	// UserAgent is sent with every request.
	UserAgent string
}

// Client resolves mentions against an entity-fishing service.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates an entity-fishing client.
func NewClient(cfg Config) *Client {
	return NewClientWithHTTPClient(cfg, nil)
}

// NewClientWithHTTPClient creates a client with a custom HTTP client
// (for testing).
func NewClientWithHTTPClient(cfg Config, client *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "tsvlink"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{cfg: cfg, client: client}
}

// Resolve looks the mention up. Mentions with a pre-assigned KB id use
// the concept endpoint; bare mentions go through disambiguation.
func (c *Client) Resolve(ctx context.Context, m Mention) (*Entity, error) {
	lang := m.Language
	if lang == "" {
		lang = c.cfg.Language
	}
	if m.KBID != "" {
		return c.concept(ctx, m.KBID, lang)
	}
	if strings.TrimSpace(m.Surface) == "" {
		return nil, nil
	}
	return c.disambiguate(ctx, m, lang)
}

// conceptResponse is the subset of the entity-fishing concept record
// the converter needs. Disambiguation results reuse the same fields.
type conceptResponse struct {
	RawName              string             `json:"rawName"`
	PreferredTerm        string             `json:"preferredTerm"`
	WikidataID           string             `json:"wikidataId"`
	WikipediaExternalRef int64              `json:"wikipediaExternalRef"`
	ConfidenceScore      float64            `json:"confidence_score"`
	Multilingual         []multilingualTerm `json:"multilingual"`
}

type multilingualTerm struct {
	Lang   string `json:"lang"`
	Term   string `json:"term"`
	PageID int64  `json:"page_id"`
}

func (c *Client) concept(ctx context.Context, id, lang string) (*Entity, error) {
	u := fmt.Sprintf("%s/kb/concept/%s?lang=%s", c.cfg.BaseURL, url.PathEscape(id), url.QueryEscape(lang))

	var rec conceptResponse
	found, err := c.do(ctx, http.MethodGet, u, nil, &rec)
	if err != nil {
		return nil, fmt.Errorf("concept lookup for %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}

	e := rec.entity(lang)
	if e.ID == "" {
		// The service answered without a Wikidata id; keep the one we
		// asked about so callers see a consistent record.
		e.ID = id
	}
	e.Confidence = 1.0
	return e, nil
}

// disambiguateQuery is the request body for the disambiguation
// endpoint. The mention is passed pre-segmented so the service scores
// exactly the surface the annotator marked.
type disambiguateQuery struct {
	ShortText string         `json:"shortText"`
	Entities  []queryMention `json:"entities"`
	Language  queryLanguage  `json:"language"`
	NBest     bool           `json:"nbest"`
}

type queryMention struct {
	RawName string `json:"rawName"`
}

type queryLanguage struct {
	Lang string `json:"lang"`
}

type disambiguateResponse struct {
	Entities []conceptResponse `json:"entities"`
}

func (c *Client) disambiguate(ctx context.Context, m Mention, lang string) (*Entity, error) {
	text := m.Context
	if text == "" {
		text = m.Surface
	}
	payload, err := json.Marshal(disambiguateQuery{
		ShortText: text,
		Entities:  []queryMention{{RawName: m.Surface}},
		Language:  queryLanguage{Lang: lang},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding disambiguation query: %w", err)
	}

	var rec disambiguateResponse
	found, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/disambiguate", payload, &rec)
	if err != nil {
		return nil, fmt.Errorf("disambiguating %q: %w", m.Surface, err)
	}
	if !found {
		return nil, nil
	}

	best := pickEntity(rec.Entities, m.Surface)
	if best == nil || best.WikidataID == "" {
		return nil, nil
	}
	e := best.entity(lang)
	e.Confidence = best.ConfidenceScore
	return e, nil
}

// pickEntity prefers the candidate whose raw name matches the queried
// surface; the service may also annotate other mentions in the context.
func pickEntity(candidates []conceptResponse, surface string) *conceptResponse {
	for i := range candidates {
		if strings.EqualFold(candidates[i].RawName, surface) {
			return &candidates[i]
		}
	}
	if len(candidates) > 0 {
		return &candidates[0]
	}
	return nil
}

// entity converts a service record for the given language. English
// reads the top-level preferred term; other languages take the
// multilingual entry, falling back to the top-level fields when the
// service has no localized record.
func (r *conceptResponse) entity(lang string) *Entity {
	e := &Entity{
		ID:     r.WikidataID,
		Name:   r.PreferredTerm,
		Source: SourceName,
	}
	if r.WikipediaExternalRef != 0 {
		e.PageID = strconv.FormatInt(r.WikipediaExternalRef, 10)
	}
	if lang != "en" {
		for _, ml := range r.Multilingual {
			if ml.Lang != lang {
				continue
			}
			if ml.Term != "" {
				e.Name = ml.Term
			}
			if ml.PageID != 0 {
				e.PageID = strconv.FormatInt(ml.PageID, 10)
			}
			break
		}
	}
	return e
}

// do runs one HTTP exchange with per-attempt timeout and bounded
// exponential backoff. It reports found=false for 4xx answers, which
// the service uses for unknown concepts.
func (c *Client) do(ctx context.Context, method, u string, payload []byte, out interface{}) (bool, error) {
	var found bool

	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(attemptCtx, method, u, body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
			}
			found = true
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("service error: HTTP %d", resp.StatusCode)
		default:
			// 4xx, typically 404 for unknown concepts.
			found = false
			return nil
		}
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.MaxRetries))
	if err := backoff.Retry(op, bo); err != nil {
		return false, err
	}
	return found, nil
}
