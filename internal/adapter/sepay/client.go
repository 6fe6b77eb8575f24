package sepay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/storepay/internal/domain/model"
)

// ErrInvalidToken indicates the aggregator rejected the API token.
var ErrInvalidToken = errors.New("sepay api token rejected")

// TooManyRequestsError represents rate limiting signal from the aggregator API.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

// Client lists recent bank transfers seen by the aggregator.
type Client interface {
	Recent(ctx context.Context) ([]model.Transfer, error)
}

// HTTPClient implements Client via the SePay user API.
type HTTPClient struct {
	baseURL       *url.URL
	token         string
	accountNumber string
	limit         int
	httpClient    *http.Client
	logger        *slog.Logger
}

const defaultLimit = 50

// transaction mirrors one entry of the transaction list payload.
// Amounts arrive as decimal strings such as "150000.00".
type transaction struct {
	ID                 string `json:"id"`
	BankBrandName      string `json:"bank_brand_name"`
	AccountNumber      string `json:"account_number"`
	TransactionDate    string `json:"transaction_date"`
	AmountOut          string `json:"amount_out"`
	AmountIn           string `json:"amount_in"`
	TransactionContent string `json:"transaction_content"`
	ReferenceNumber    string `json:"reference_number"`
	Code               string `json:"code"`
}

type listResponse struct {
	Status       int           `json:"status"`
	Transactions []transaction `json:"transactions"`
}

// NewHTTPClient creates SePay client with default timeout.
func NewHTTPClient(baseURL, token, accountNumber string, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse sepay url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("sepay url must be absolute")
	}
	return &HTTPClient{
		baseURL:       parsed,
		token:         token,
		accountNumber: accountNumber,
		limit:         defaultLimit,
		logger:        logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Recent fetches the latest transactions of the configured account.
func (c *HTTPClient) Recent(ctx context.Context) ([]model.Transfer, error) {
	endpoint := *c.baseURL
	endpoint.Path = path.Join(endpoint.Path, "/userapi/transactions/list")
	query := endpoint.Query()
	query.Set("limit", strconv.Itoa(c.limit))
	if c.accountNumber != "" {
		query.Set("account_number", c.accountNumber)
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		var data listResponse
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, err
		}
		transfers := make([]model.Transfer, 0, len(data.Transactions))
		for _, tx := range data.Transactions {
			transfer, err := tx.toTransfer()
			if err != nil {
				c.logger.Warn("skip malformed sepay transaction", slog.String("id", tx.ID), slog.String("error", err.Error()))
				continue
			}
			transfers = append(transfers, transfer)
		}
		return transfers, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidToken
	case http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, TooManyRequestsError{RetryAfter: retryAfter}
	default:
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("sepay request failed", slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return nil, fmt.Errorf("sepay error: %s", resp.Status)
	}
}

func (tx transaction) toTransfer() (model.Transfer, error) {
	id, err := strconv.ParseInt(tx.ID, 10, 64)
	if err != nil {
		return model.Transfer{}, fmt.Errorf("parse id: %w", err)
	}
	in, err := parseAmount(tx.AmountIn)
	if err != nil {
		return model.Transfer{}, fmt.Errorf("parse amount_in: %w", err)
	}
	out, err := parseAmount(tx.AmountOut)
	if err != nil {
		return model.Transfer{}, fmt.Errorf("parse amount_out: %w", err)
	}

	transfer := model.Transfer{
		TransactionID:   id,
		Content:         tx.TransactionContent,
		Amount:          in,
		Type:            model.TransferIn,
		Gateway:         tx.BankBrandName,
		AccountNumber:   tx.AccountNumber,
		ReferenceCode:   tx.ReferenceNumber,
		TransactionDate: tx.TransactionDate,
		Description:     tx.Code,
	}
	if in == 0 && out > 0 {
		transfer.Amount = out
		transfer.Type = model.TransferOut
	}
	return transfer, nil
}

// parseAmount converts a decimal string into whole currency units.
// Fractional amounts are rejected since orders are priced in whole units.
func parseAmount(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("fractional amount %s", raw)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", raw)
	}
	return d.IntPart(), nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 5 * time.Second
}
