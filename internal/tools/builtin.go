package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NewEnterpriseRegistry builds the registry of builtin enterprise functions.
// The implementations return canned, deterministic data; the real business
// systems behind them are outside this repo.
func NewEnterpriseRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("fetch_weather", fetchWeather)
	r.MustRegister("fetch_datetime", fetchDatetime)
	r.MustRegister("fetch_stock_price", fetchStockPrice)
	r.MustRegister("send_email", sendEmail)
	return r
}

var weatherByCity = map[string]string{
	"seattle":  "Rainy, 14C",
	"london":   "Cloudy, 18C",
	"tokyo":    "Sunny, 26C",
	"new york": "Sunny, 22C",
}

func fetchWeather(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Location  string `json:"location"`
		Timeframe string `json:"timeframe"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("failed to parse weather arguments: %w", err)
	}
	if in.Location == "" {
		return "", fmt.Errorf("location is required")
	}
	report, ok := weatherByCity[strings.ToLower(in.Location)]
	if !ok {
		report = "Partly cloudy, 20C"
	}
	timeframe := in.Timeframe
	if timeframe == "" {
		timeframe = "current"
	}
	return fmt.Sprintf("Weather in %s (%s): %s", in.Location, timeframe, report), nil
}

func fetchDatetime(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Format string `json:"format"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("failed to parse datetime arguments: %w", err)
	}
	layout := in.Format
	if layout == "" {
		layout = "Monday, Jan 02, 2006, 03:04 PM"
	}
	return time.Now().Format(layout), nil
}

var stockPrices = map[string]float64{
	"MSFT": 423.80,
	"AAPL": 227.35,
	"GOOG": 174.12,
}

func fetchStockPrice(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("failed to parse stock arguments: %w", err)
	}
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	if symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}
	price, ok := stockPrices[symbol]
	if !ok {
		return "", fmt.Errorf("unknown symbol %s", symbol)
	}
	return fmt.Sprintf("%s is trading at $%.2f", symbol, price), nil
}

func sendEmail(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Recipient string `json:"recipient"`
		Subject   string `json:"subject"`
		Body      string `json:"body"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("failed to parse email arguments: %w", err)
	}
	if in.Recipient == "" || in.Subject == "" || in.Body == "" {
		return "", fmt.Errorf("missing required email parameters")
	}
	return fmt.Sprintf("Email sent to %s with subject %q", in.Recipient, in.Subject), nil
}
