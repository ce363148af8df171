package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/telemetry"
)

const (
	StageAfterPaymentAction = "AFTER_PAYMENT_ACTION"

	endpointOrders = "orders"
	endpointStatus = "status"

	maxResponseBytes = 1 << 20
)

// TransportError is a failure to get a usable HTTP response from the risk API.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("risk api %s: http %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("risk api %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type RiskClientConfig struct {
	BaseURL    string
	Secret     string
	APIVersion string
	Timeout    time.Duration
	RateLimit  int
	RateBurst  int
}

// RiskClient talks to the fraud-risk validation and status endpoints.
type RiskClient struct {
	cfg        RiskClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	tracer     trace.Tracer
	logger     *zap.Logger
}

func NewRiskClient(cfg RiskClientConfig, logger *zap.Logger) *RiskClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &RiskClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(limit, burst),
		tracer:  otel.Tracer("fraud-orchestrator/risk-client"),
		logger:  logger,
	}
}

type amount struct {
	AmountLocalCurrency string `json:"amountLocalCurrency"`
	Currency            string `json:"currency"`
}

type creditCard struct {
	CardType       string `json:"cardType,omitempty"`
	LastFourDigits string `json:"lastFourDigits,omitempty"`
	TransactionID  string `json:"transactionId,omitempty"`
}

type paymentPayload struct {
	PaymentMethodNickname string      `json:"paymentMethodNickname"`
	SubMethod             string      `json:"subMethod,omitempty"`
	Amount                amount      `json:"amount"`
	CreditCard            *creditCard `json:"creditCard,omitempty"`
}

type transactionPayload struct {
	OrderID           string           `json:"orderId"`
	OrderType         string           `json:"orderType"`
	AuthorizationStep string           `json:"authorizationStep"`
	TimeSentToForter  int64            `json:"timeSentToForter"`
	StoreID           string           `json:"storeId"`
	CustomerEmail     string           `json:"customerEmail,omitempty"`
	TotalAmount       amount           `json:"totalAmount"`
	Payment           []paymentPayload `json:"payment"`
}

type statusPayload struct {
	OrderID        string `json:"orderId"`
	EventTimestamp int64  `json:"eventTimestamp"`
	UpdatedStatus  string `json:"updatedStatus"`
}

// formatAmount renders an amount with two decimals, rounding half away from zero.
func formatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func buildTransaction(order *models.Order, stage string, now time.Time) transactionPayload {
	p := paymentPayload{
		PaymentMethodNickname: order.Payment.Method,
		SubMethod:             order.SubMethod(),
		Amount: amount{
			AmountLocalCurrency: formatAmount(order.Payment.Amount),
			Currency:            order.Payment.Currency,
		},
	}
	if order.Payment.CcLast4 != "" || order.Payment.CcTransID != "" {
		p.CreditCard = &creditCard{
			CardType:       order.Payment.CcType,
			LastFourDigits: order.Payment.CcLast4,
			TransactionID:  order.Payment.CcTransID,
		}
	}
	return transactionPayload{
		OrderID:           order.IncrementID,
		OrderType:         "WEB",
		AuthorizationStep: stage,
		TimeSentToForter:  now.UnixMilli(),
		StoreID:           order.StoreID,
		CustomerEmail:     order.CustomerEmail,
		TotalAmount: amount{
			AmountLocalCurrency: formatAmount(order.GrandTotal),
			Currency:            order.Currency,
		},
		Payment: []paymentPayload{p},
	}
}

// SendTransaction posts the order for validation. An unsuccessful or malformed
// response comes back as a decision with IsError() set, not as an error.
func (c *RiskClient) SendTransaction(ctx context.Context, order *models.Order, stage string) (*models.FraudDecision, error) {
	payload := buildTransaction(order, stage, time.Now())
	body, err := c.post(ctx, endpointOrders, order.IncrementID, payload)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Risk API response",
		zap.String("order_increment_id", order.IncrementID),
		zap.ByteString("body", body),
	)

	var decision models.FraudDecision
	if err := json.Unmarshal(body, &decision); err != nil {
		return &models.FraudDecision{Status: models.StatusError, Message: fmt.Sprintf("malformed response: %v", err)}, nil
	}
	return &decision, nil
}

func (c *RiskClient) SendOrderStatus(ctx context.Context, order *models.Order, status string) error {
	payload := statusPayload{
		OrderID:        order.IncrementID,
		EventTimestamp: time.Now().UnixMilli(),
		UpdatedStatus:  status,
	}
	_, err := c.post(ctx, endpointStatus, order.IncrementID, payload)
	return err
}

func (c *RiskClient) post(ctx context.Context, endpoint, incrementID string, payload interface{}) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.cfg.BaseURL, "/"), endpoint, incrementID)

	ctx, span := c.tracer.Start(ctx, "risk."+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.url", url),
		attribute.String("order.increment_id", incrementID),
	)

	fail := func(statusCode int, err error) ([]byte, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		telemetry.RiskAPIRequests.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, &TransportError{Endpoint: endpoint, StatusCode: statusCode, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(0, fmt.Errorf("rate limiter: %w", err))
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIVersion != "" {
		req.Header.Set("api-version", c.cfg.APIVersion)
	}
	if c.cfg.Secret != "" {
		req.SetBasicAuth(c.cfg.Secret, "")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	telemetry.RiskAPIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fail(resp.StatusCode, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		return fail(resp.StatusCode, fmt.Errorf("server error: %s", resp.Status))
	}

	telemetry.RiskAPIRequests.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}
