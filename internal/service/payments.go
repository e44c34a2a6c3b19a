package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracectx/internal/api/middleware"
	"github.com/GriffinCanCode/tracectx/internal/infrastructure/resilience"
)

// ErrPaymentDeclined is returned when the gateway refuses a charge.
var ErrPaymentDeclined = errors.New("payment declined")

// Payments charges an order.
type Payments interface {
	Charge(ctx context.Context, orderID string, amountCents int64) error
}

// PaymentClient charges orders against a remote HTTP gateway. Every call
// carries the caller's trace context as B3 headers.
type PaymentClient struct {
	resty   *resty.Client
	breaker *resilience.Breaker
	logger  *zap.Logger
}

type chargeRequest struct {
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
}

type chargeResponse struct {
	ChargeID string `json:"charge_id"`
}

// PaymentOption configures a PaymentClient
type PaymentOption func(*PaymentClient)

// WithPaymentRetries sets resty's retry count and backoff bounds
func WithPaymentRetries(count int, minWait, maxWait time.Duration) PaymentOption {
	return func(p *PaymentClient) {
		p.resty.SetRetryCount(count).
			SetRetryWaitTime(minWait).
			SetRetryMaxWaitTime(maxWait)
	}
}

// WithPaymentBreaker guards the gateway with a circuit breaker
func WithPaymentBreaker(b *resilience.Breaker) PaymentOption {
	return func(p *PaymentClient) {
		p.breaker = b
	}
}

// NewPaymentClient creates a gateway client for baseURL
func NewPaymentClient(baseURL string, logger *zap.Logger, opts ...PaymentOption) *PaymentClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Pooled transport from the retryable client, wrapped for propagation
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(50*time.Millisecond).
		SetRetryMaxWaitTime(500*time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("User-Agent", "tracectx-payments/1.0").
		SetTransport(&middleware.Transport{Base: retryClient.HTTPClient.Transport})
	client.JSONMarshal = sonic.Marshal
	client.JSONUnmarshal = sonic.Unmarshal

	p := &PaymentClient{
		resty:   client,
		breaker: resilience.New("payments", resilience.Settings{}),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Charge posts a charge for the order
func (p *PaymentClient) Charge(ctx context.Context, orderID string, amountCents int64) error {
	var result chargeResponse
	var resp *resty.Response

	err := p.breaker.Execute(func() error {
		var err error
		resp, err = p.resty.R().
			SetContext(ctx).
			SetBody(chargeRequest{OrderID: orderID, AmountCents: amountCents}).
			SetResult(&result).
			Post("/charges")
		if err != nil {
			return err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return fmt.Errorf("payment gateway status %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("charge order %s: %w", orderID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: order %s status %d", ErrPaymentDeclined, orderID, resp.StatusCode())
	}

	p.logger.Debug("order charged",
		zap.String("order_id", orderID),
		zap.String("charge_id", result.ChargeID),
	)
	return nil
}
