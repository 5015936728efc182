package currencysvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/shopspring/decimal"
)

// NewHTTPClient returns the client used by the bundled providers. The
// bounded timeout keeps a dead provider from stalling a request.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &http.Client{Timeout: timeout}
}

// FrankfurterProvider fetches rates from the Frankfurter API.
type FrankfurterProvider struct {
	client  *http.Client
	baseURL string
}

// NewFrankfurterProvider creates a new Frankfurter rate provider.
func NewFrankfurterProvider(client *http.Client) *FrankfurterProvider {
	return &FrankfurterProvider{
		client:  client,
		baseURL: "https://api.frankfurter.dev/v1",
	}
}

func (p *FrankfurterProvider) Name() string {
	return "frankfurter"
}

func (p *FrankfurterProvider) FetchRate(ctx context.Context, from, to money.Currency) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/latest?base=%s&symbols=%s", p.baseURL, from, to)

	var payload struct {
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := fetchJSON(ctx, p.client, url, &payload); err != nil {
		return decimal.Zero, err
	}

	rate, ok := payload.Rates[to.String()]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for %s in response", to)
	}

	return rate, nil
}

// OpenERAPIProvider fetches rates from open.er-api.com, used as the
// fallback when Frankfurter is unavailable.
type OpenERAPIProvider struct {
	client  *http.Client
	baseURL string
}

// NewOpenERAPIProvider creates a new open.er-api.com rate provider.
func NewOpenERAPIProvider(client *http.Client) *OpenERAPIProvider {
	return &OpenERAPIProvider{
		client:  client,
		baseURL: "https://open.er-api.com/v6",
	}
}

func (p *OpenERAPIProvider) Name() string {
	return "open-er-api"
}

func (p *OpenERAPIProvider) FetchRate(ctx context.Context, from, to money.Currency) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/latest/%s", p.baseURL, from)

	var payload struct {
		Result string                     `json:"result"`
		Rates  map[string]decimal.Decimal `json:"rates"`
	}
	if err := fetchJSON(ctx, p.client, url, &payload); err != nil {
		return decimal.Zero, err
	}

	if payload.Result != "success" {
		return decimal.Zero, fmt.Errorf("provider returned result %q", payload.Result)
	}

	rate, ok := payload.Rates[to.String()]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for %s in response", to)
	}

	return rate, nil
}

func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
