package fx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultECBURL is the ECB daily euro foreign exchange reference feed.
const DefaultECBURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"

// ECBFetcher reads the ECB daily reference rates. The feed quotes every
// currency against EUR, so rates into any other reporting currency are
// derived as cross rates: X->R = (EUR->R) / (EUR->X).
type ECBFetcher struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

func NewECBFetcher(url string, log *logrus.Logger) *ECBFetcher {
	if url == "" {
		url = DefaultECBURL
	}
	if log == nil {
		log = logrus.New()
	}
	return &ECBFetcher{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Fetch returns the multiplier from currency into reporting.
func (f *ECBFetcher) Fetch(ctx context.Context, currency, reporting string) (decimal.Decimal, error) {
	body, err := f.download(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	perEuro, err := parseECB(body)
	if err != nil {
		return decimal.Zero, err
	}
	return crossRate(perEuro, NormalizeCurrency(currency), NormalizeCurrency(reporting))
}

func (f *ECBFetcher) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	f.log.Debugf("ECB XML response: %d bytes", len(body))
	return body, nil
}

// parseECB extracts currency -> units per 1 EUR. EUR itself maps to 1.
func parseECB(raw []byte) (map[string]decimal.Decimal, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	cubes := doc.FindElements("//Cube[@currency]")
	if len(cubes) == 0 {
		return nil, fmt.Errorf("no rate data found in XML")
	}

	rates := map[string]decimal.Decimal{"EUR": decimal.NewFromInt(1)}
	for _, cube := range cubes {
		code := NormalizeCurrency(cube.SelectAttrValue("currency", ""))
		rate, err := decimal.NewFromString(cube.SelectAttrValue("rate", ""))
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate for %s: %w", code, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("non-positive rate for %s", code)
		}
		rates[code] = rate
	}
	return rates, nil
}

func crossRate(perEuro map[string]decimal.Decimal, currency, reporting string) (decimal.Decimal, error) {
	from, ok := perEuro[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("currency %s not quoted by ECB", currency)
	}
	to, ok := perEuro[reporting]
	if !ok {
		return decimal.Zero, fmt.Errorf("currency %s not quoted by ECB", reporting)
	}
	return to.Div(from), nil
}
