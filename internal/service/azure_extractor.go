package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/imaging"
	"github.com/squirll/receiptd/internal/pipeline"
	"github.com/squirll/receiptd/pkg/config"
)

const azureAPIVersion = "2024-11-30"

// AzureExtractor is the document-intelligence backend. It submits the image
// to the prebuilt receipt model and polls the operation until it finishes,
// bounded by the configured ceiling.
type AzureExtractor struct {
	endpoint     string
	key          string
	pollInterval time.Duration
	pollTimeout  time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

func NewAzureExtractor(cfg *config.AzureConfig, logger *zap.Logger) (*AzureExtractor, error) {
	if cfg.Endpoint == "" || cfg.Key == "" {
		return nil, fmt.Errorf("document intelligence endpoint and key are required")
	}

	return &AzureExtractor{
		endpoint:     strings.TrimSuffix(cfg.Endpoint, "/"),
		key:          cfg.Key,
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}, nil
}

func (e *AzureExtractor) Name() string { return "azure" }

func (e *AzureExtractor) Extract(ctx context.Context, input ExtractionInput) (*pipeline.NormalizedReceipt, error) {
	if len(input.Images) == 0 {
		return nil, &pipeline.ExtractionError{Backend: e.Name(), Err: fmt.Errorf("document intelligence backend requires image input")}
	}

	data := input.Images[0]
	if len(input.Images) > 1 {
		stitched, err := imaging.StitchVertical(input.Images)
		if err != nil {
			return nil, &pipeline.ExtractionError{Backend: e.Name(), Err: err}
		}
		data = stitched
	}

	operationURL, err := e.submit(ctx, data)
	if err != nil {
		return nil, &pipeline.ExtractionError{Backend: e.Name(), Err: err}
	}

	result, err := e.poll(ctx, operationURL)
	if err != nil {
		return nil, &pipeline.ExtractionError{Backend: e.Name(), Err: err}
	}

	return result.normalize(), nil
}

// submit starts the analysis and returns the operation URL from the
// Operation-Location header.
func (e *AzureExtractor) submit(ctx context.Context, image []byte) (string, error) {
	url := fmt.Sprintf("%s/documentintelligence/documentModels/prebuilt-receipt:analyze?api-version=%s",
		e.endpoint, azureAPIVersion)

	body, err := json.Marshal(map[string]string{
		"base64Source": base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", e.key)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit analysis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		payload, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("submit analysis: status %d: %s", resp.StatusCode, payload)
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", fmt.Errorf("submit analysis: missing Operation-Location header")
	}
	return operationURL, nil
}

// poll fetches the operation at fixed intervals until it succeeds, fails, or
// the ceiling elapses. A timeout surfaces as an error, not a silent retry.
func (e *AzureExtractor) poll(ctx context.Context, operationURL string) (*azureAnalyzeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("analysis did not finish within %s: %w", e.pollTimeout, ctx.Err())
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", e.key)

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("poll analysis: %w", err)
		}

		var status azureOperation
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("poll analysis: decode response: %w", err)
		}

		switch status.Status {
		case "succeeded":
			if status.AnalyzeResult == nil || len(status.AnalyzeResult.Documents) == 0 {
				return nil, fmt.Errorf("analysis succeeded but returned no documents")
			}
			e.logger.Info("Document intelligence analysis completed",
				zap.Int("documents", len(status.AnalyzeResult.Documents)),
			)
			return status.AnalyzeResult, nil
		case "failed":
			return nil, fmt.Errorf("analysis failed: %s", status.Error.Message)
		default:
			// notStarted / running: keep polling.
		}
	}
}

type azureOperation struct {
	Status        string              `json:"status"`
	AnalyzeResult *azureAnalyzeResult `json:"analyzeResult"`
	Error         struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type azureAnalyzeResult struct {
	Documents []struct {
		Fields map[string]azureField `json:"fields"`
	} `json:"documents"`
}

// azureField is the service's polymorphic field value. Only the variants the
// prebuilt receipt model emits are mapped.
type azureField struct {
	ValueString   string   `json:"valueString"`
	ValuePhone    string   `json:"valuePhoneNumber"`
	ValueDate     string   `json:"valueDate"`
	ValueTime     string   `json:"valueTime"`
	ValueNumber   *float64 `json:"valueNumber"`
	Content       string   `json:"content"`
	ValueCurrency *struct {
		Amount         float64 `json:"amount"`
		CurrencySymbol string  `json:"currencySymbol"`
		CurrencyCode   string  `json:"currencyCode"`
	} `json:"valueCurrency"`
	ValueArray []struct {
		ValueObject map[string]azureField `json:"valueObject"`
	} `json:"valueArray"`
}

func (f azureField) text() string {
	if f.ValueString != "" {
		return f.ValueString
	}
	return f.Content
}

func (f azureField) money() decimal.NullDecimal {
	if f.ValueCurrency == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{
		Decimal: decimal.NewFromFloat(f.ValueCurrency.Amount).Round(2),
		Valid:   true,
	}
}

// normalize maps the prebuilt-receipt field taxonomy onto the shared record.
func (r *azureAnalyzeResult) normalize() *pipeline.NormalizedReceipt {
	fields := r.Documents[0].Fields

	out := &pipeline.NormalizedReceipt{
		Company:      fields["MerchantName"].text(),
		Address:      fields["MerchantAddress"].text(),
		CompanyPhone: fields["MerchantPhoneNumber"].ValuePhone,
		Date:         fields["TransactionDate"].ValueDate,
		Time:         fields["TransactionTime"].ValueTime,
		SubTotal:     fields["Subtotal"].money(),
		Tax:          fields["TotalTax"].money(),
		Total:        fields["Total"].money(),
		Tip:          fields["Tip"].money(),
	}

	if c := fields["Total"].ValueCurrency; c != nil {
		out.CurrencySymbol = c.CurrencySymbol
		out.CurrencyCode = c.CurrencyCode
	}

	for _, entry := range fields["Items"].ValueArray {
		obj := entry.ValueObject
		item := pipeline.NormalizedItem{
			Description:  obj["Description"].text(),
			ProductID:    obj["ProductCode"].text(),
			QuantityUnit: obj["QuantityUnit"].text(),
			Price:        obj["Price"].money(),
		}
		if q := obj["Quantity"].ValueNumber; q != nil {
			item.Quantity = decimal.NullDecimal{
				Decimal: decimal.NewFromFloat(*q).Round(5),
				Valid:   true,
			}
		}
		if tp := obj["TotalPrice"].money(); tp.Valid {
			item.TotalPrice = tp.Decimal
		}
		out.Items = append(out.Items, item)
	}

	return out
}
