package prompts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Resolver returns a prompt template by name with {placeholder}
// variables substituted.
type Resolver interface {
	Resolve(ctx context.Context, name string, vars map[string]string) (string, error)
}

// CMSResolver fetches templates from a prompt management service and
// caches them. When the service is unreachable or does not know the
// prompt, the shipped default is used instead so prompt delivery
// never blocks a conversation.
type CMSResolver struct {
	baseURL string
	client  *http.Client
	cache   *cache.Cache
}

type cmsPromptResponse struct {
	Name     string `json:"name"`
	Template string `json:"prompt"`
}

// negativeCacheTTL bounds how long a fallback answer masks the prompt
// service after a failed fetch.
const negativeCacheTTL = 30 * time.Second

func NewCMSResolver(baseURL string, cacheTTL time.Duration) *CMSResolver {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &CMSResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
		cache:   cache.New(cacheTTL, 2*cacheTTL),
	}
}

func (r *CMSResolver) Resolve(ctx context.Context, name string, vars map[string]string) (string, error) {
	template, err := r.template(ctx, name)
	if err != nil {
		return "", err
	}
	return substitute(template, vars), nil
}

func (r *CMSResolver) template(ctx context.Context, name string) (string, error) {
	if cached, found := r.cache.Get(name); found {
		return cached.(string), nil
	}

	template, err := r.fetch(ctx, name)
	if err != nil {
		fallback, ok := defaults[name]
		if !ok {
			return "", fmt.Errorf("prompt %s unavailable: %w", name, err)
		}
		// The fallback keeps only a short cache life so the service
		// is retried soon after it recovers.
		r.cache.Set(name, fallback, negativeCacheTTL)
		return fallback, nil
	}

	r.cache.Set(name, template, cache.DefaultExpiration)
	return template, nil
}

func (r *CMSResolver) fetch(ctx context.Context, name string) (string, error) {
	if r.baseURL == "" {
		return "", fmt.Errorf("prompt service not configured")
	}

	url := fmt.Sprintf("%s/api/prompts/%s", r.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("prompt service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("prompt service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed cmsPromptResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode prompt response: %w", err)
	}
	if parsed.Template == "" {
		return "", fmt.Errorf("prompt service returned empty template for %s", name)
	}
	return parsed.Template, nil
}

// StaticResolver serves only the shipped defaults. Used in tests and
// when no prompt service is deployed.
type StaticResolver struct{}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{}
}

func (s *StaticResolver) Resolve(_ context.Context, name string, vars map[string]string) (string, error) {
	template, ok := defaults[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt: %s", name)
	}
	return substitute(template, vars), nil
}

func substitute(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
