// Package resolver expands shortened links through an unshortening service.
// Links on hosts that are not known shorteners are returned untouched
// without any network traffic.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/raysh454/linkguard/internal/logging"
	"github.com/raysh454/linkguard/internal/model"
	"github.com/raysh454/linkguard/internal/utils"
	"github.com/raysh454/linkguard/internal/webclient"
)

// EnvAPIKey names the credential variable for the unshortening service.
const EnvAPIKey = "UNSHORTEN_API_KEY"

// Degradation notes attached to a ResolvedTarget when expansion fails.
const (
	NoteUnshortenFailed = "unshortening failed, using the original link"
	NoteUnshortenError  = "an error occurred while unshortening, using the original link"
)

var shorteners = []string{
	"bit.ly",
	"tinyurl.com",
	"t.co",
	"goo.gl",
	"ow.ly",
	"short.link",
	"is.gd",
	"buff.ly",
}

// resolvedFields are tried in order; the first absolute http(s) URL wins.
var resolvedFields = []string{"resolved_url", "unshortened_url", "url"}

// Shorteners returns a copy of the known shortener domains.
func Shorteners() []string {
	return append([]string(nil), shorteners...)
}

// IsShortened reports whether raw points at a known shortener host or one of
// its subdomains. Unparseable input is never considered shortened.
func IsShortened(raw string) bool {
	host, err := utils.Hostname(raw)
	if err != nil {
		return false
	}
	for _, domain := range shorteners {
		if utils.HostMatches(host, domain) {
			return true
		}
	}
	return false
}

type Resolver struct {
	baseURL string
	apiKey  string
	client  webclient.WebClient
	logger  logging.Logger
}

func New(cfg Config, client webclient.WebClient, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultConfig().BaseURL
	}
	return &Resolver{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
		logger:  logger.With(logging.Field{Key: "component", Value: "resolver"}),
	}
}

// Resolve returns the final destination of raw. Upstream failures never
// surface as errors: the original link is kept and a Note is attached. The
// only error is a missing API key, reported before any network call.
func (r *Resolver) Resolve(ctx context.Context, raw string) (model.ResolvedTarget, error) {
	raw = strings.TrimSpace(raw)
	if r.apiKey == "" {
		return model.ResolvedTarget{}, &model.ConfigurationError{Missing: []string{EnvAPIKey}}
	}

	target := model.ResolvedTarget{OriginalURL: raw, ResolvedURL: raw}
	if !IsShortened(raw) {
		r.logger.Debug("link is not shortened", logging.Field{Key: "url", Value: raw})
		return target, nil
	}
	target.WasShortened = true

	resolved, note := r.unshorten(ctx, raw)
	if note != "" {
		target.Note = note
		return target, nil
	}

	r.logger.Info("unshortened link",
		logging.Field{Key: "from", Value: raw},
		logging.Field{Key: "to", Value: resolved})
	target.ResolvedURL = resolved
	return target, nil
}

// unshorten performs the single upstream call. A non-empty note means the
// caller must fall back to the original link.
func (r *Resolver) unshorten(ctx context.Context, raw string) (string, string) {
	endpoint := fmt.Sprintf("%s/api/v2/unshorten?url=%s", r.baseURL, url.QueryEscape(raw))
	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.apiKey)
	headers.Set("Accept", "application/json")

	resp, err := r.client.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: endpoint, Headers: headers})
	if err != nil {
		r.logger.Warn("unshorten request failed", logging.Field{Key: "error", Value: err.Error()})
		return "", NoteUnshortenError
	}
	if !resp.OK() {
		r.logger.Warn("unshorten service returned non-success status",
			logging.Field{Key: "status", Value: resp.StatusCode})
		return "", NoteUnshortenFailed
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		r.logger.Warn("unshorten response is not json", logging.Field{Key: "error", Value: err.Error()})
		return "", NoteUnshortenError
	}

	for _, field := range resolvedFields {
		if s, ok := body[field].(string); ok && utils.IsAbsoluteHTTPURL(s) {
			return strings.TrimSpace(s), ""
		}
	}
	r.logger.Warn("unshorten response carried no usable url")
	return "", NoteUnshortenFailed
}
