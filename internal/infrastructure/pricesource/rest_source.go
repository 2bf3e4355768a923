package pricesource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/x42protocol/xserverd/internal/core/ports"
	"github.com/x42protocol/xserverd/pkg/util"
)

// restSource polls a public exchange ticker endpoint. The URL template and
// price path accept {currency} and {CURRENCY} placeholders, replaced with
// the lower and upper cased quote currency. The price may arrive as a number
// or a numeric string.
type restSource struct {
	name        string
	urlTemplate string
	pricePath   []string
}

// NewRESTSource ...
func NewRESTSource(name, urlTemplate string, pricePath ...string) ports.PriceSource {
	return &restSource{
		name:        name,
		urlTemplate: urlTemplate,
		pricePath:   pricePath,
	}
}

func (s *restSource) Name() string {
	return s.name
}

func (s *restSource) FetchPrice(
	ctx context.Context, currency string,
) (decimal.Decimal, error) {
	url := expand(s.urlTemplate, currency)
	status, body, err := util.NewHTTPRequest(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return decimal.Zero, err
	}
	if status != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%s: unexpected status %d", s.name, status)
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", s.name, err)
	}

	node := doc
	for _, key := range s.pricePath {
		obj, ok := node.(map[string]interface{})
		if !ok {
			return decimal.Zero, fmt.Errorf("%s: malformed response", s.name)
		}
		node, ok = obj[expand(key, currency)]
		if !ok {
			return decimal.Zero, fmt.Errorf("%s: missing field %s", s.name, key)
		}
	}

	switch v := node.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		return decimal.NewFromString(v)
	default:
		return decimal.Zero, fmt.Errorf("%s: price is not numeric", s.name)
	}
}

func expand(template, currency string) string {
	out := strings.ReplaceAll(template, "{currency}", strings.ToLower(currency))
	return strings.ReplaceAll(out, "{CURRENCY}", strings.ToUpper(currency))
}

// WellKnownSources returns the default exchange endpoints polled for the
// coin's market price.
func WellKnownSources() []ports.PriceSource {
	return []ports.PriceSource{
		NewRESTSource(
			"coingecko",
			"https://api.coingecko.com/api/v3/simple/price?ids=x42-protocol&vs_currencies={currency}",
			"x42-protocol", "{currency}",
		),
		NewRESTSource(
			"coinpaprika",
			"https://api.coinpaprika.com/v1/tickers/x42-x42-protocol?quotes={CURRENCY}",
			"quotes", "{CURRENCY}", "price",
		),
	}
}
