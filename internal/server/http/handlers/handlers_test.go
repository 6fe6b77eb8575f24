package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gw "github.com/gorilla/websocket"

	"github.com/polkiloo/storepay/internal/config"
	domainErrors "github.com/polkiloo/storepay/internal/domain/errors"
	"github.com/polkiloo/storepay/internal/domain/model"
	"github.com/polkiloo/storepay/internal/server/http/dto"
	testhelpers "github.com/polkiloo/storepay/internal/test"
	"github.com/polkiloo/storepay/internal/websocket"
)

const orderID = "0e778c1e-8d3c-4bb0-a3c0-a779468ced60"

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func performRequest(t *testing.T, method, route, path string, handler gin.HandlerFunc, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.Handle(method, route, handler)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeWebhook(t *testing.T, w *httptest.ResponseRecorder) dto.WebhookResponse {
	t.Helper()
	var resp dto.WebhookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func webhookBody(t *testing.T, overrides map[string]any) []byte {
	t.Helper()
	payload := map[string]any{
		"id":              92704,
		"gateway":         "MBBank",
		"transactionDate": "2024-07-25 14:02:37",
		"accountNumber":   "0359123456",
		"code":            nil,
		"content":         "ORDER0e778c1e8d3c4bb0a3c0a779468ced60 thanh toan",
		"transferType":    "in",
		"transferAmount":  2277000,
		"accumulated":     19077000,
		"subAccount":      nil,
		"referenceCode":   "MBVCB.3278907687",
		"description":     "",
	}
	for k, v := range overrides {
		if v == nil {
			delete(payload, k)
			continue
		}
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func TestWebhookHandlerAppliesTransfer(t *testing.T) {
	facade := &testhelpers.PaymentFacadeStub{ApplyFn: func(_ context.Context, tr model.Transfer) (model.Reconciliation, error) {
		return model.Reconciliation{Outcome: model.OutcomeCompleted, OrderID: orderID, Status: model.OrderStatusCompleted}, nil
	}}
	handler := NewWebhookHandler(facade, config.MismatchAck, discardLogger())

	w := performRequest(t, http.MethodPost, "/hook", "/hook", handler.SePay, webhookBody(t, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeWebhook(t, w)
	if !resp.Success || resp.Data == nil || resp.Data.OrderID != orderID || resp.Data.Status != "completed" {
		t.Fatalf("unexpected response %+v", resp)
	}

	if facade.AppliedCount() != 1 {
		t.Fatalf("expected one applied transfer, got %d", facade.AppliedCount())
	}
	got := facade.Applied[0]
	want := model.Transfer{
		TransactionID:   92704,
		Content:         "ORDER0e778c1e8d3c4bb0a3c0a779468ced60 thanh toan",
		Amount:          2277000,
		Type:            model.TransferIn,
		Gateway:         "MBBank",
		AccountNumber:   "0359123456",
		ReferenceCode:   "MBVCB.3278907687",
		TransactionDate: "2024-07-25 14:02:37",
	}
	if got != want {
		t.Fatalf("unexpected transfer %+v", got)
	}
}

func TestWebhookHandlerRejectsMalformedBody(t *testing.T) {
	cases := []struct {
		name string
		body []byte
	}{
		{name: "not json", body: []byte("{id:")},
		{name: "missing id", body: webhookBody(t, map[string]any{"id": nil})},
		{name: "zero id", body: webhookBody(t, map[string]any{"id": 0})},
		{name: "unknown transfer type", body: webhookBody(t, map[string]any{"transferType": "sideways"})},
		{name: "negative amount", body: webhookBody(t, map[string]any{"transferAmount": -5})},
		{name: "amount as text", body: webhookBody(t, map[string]any{"transferAmount": "100"})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			facade := &testhelpers.PaymentFacadeStub{}
			handler := NewWebhookHandler(facade, config.MismatchAck, discardLogger())
			w := performRequest(t, http.MethodPost, "/hook", "/hook", handler.SePay, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if facade.AppliedCount() != 0 {
				t.Fatal("malformed body must not reach the engine")
			}
		})
	}
}

func TestWebhookHandlerOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		policy  config.MismatchPolicy
		result  model.Reconciliation
		status  int
		message string
	}{
		{"completed", config.MismatchAck, model.Reconciliation{Outcome: model.OutcomeCompleted, OrderID: orderID, Status: model.OrderStatusCompleted}, http.StatusOK, "payment applied"},
		{"reversal", config.MismatchAck, model.Reconciliation{Outcome: model.OutcomeFailed, OrderID: orderID, Status: model.OrderStatusFailed}, http.StatusOK, "reversal applied"},
		{"duplicate", config.MismatchAck, model.Reconciliation{Outcome: model.OutcomeDuplicate, OrderID: orderID, Status: model.OrderStatusCompleted}, http.StatusOK, "duplicate delivery"},
		{"no candidate", config.MismatchAck, model.Reconciliation{Outcome: model.OutcomeNoCandidate}, http.StatusOK, "acknowledged, no match"},
		{"not found", config.MismatchAck, model.Reconciliation{Outcome: model.OutcomeNotFound, OrderID: orderID}, http.StatusOK, "acknowledged, order not found"},
		{"already processed", config.MismatchAck, model.Reconciliation{Outcome: model.OutcomeAlreadyProcessed, OrderID: orderID, Status: model.OrderStatusExpired}, http.StatusOK, "order already processed"},
		{"mismatch acknowledged", config.MismatchAck, model.Reconciliation{Outcome: model.OutcomeAmountMismatch, OrderID: orderID, Status: model.OrderStatusPending}, http.StatusOK, "amount mismatch"},
		{"mismatch retried", config.MismatchRetry, model.Reconciliation{Outcome: model.OutcomeAmountMismatch, OrderID: orderID, Status: model.OrderStatusPending}, http.StatusUnprocessableEntity, "amount mismatch"},
		{"retry policy leaves other outcomes", config.MismatchRetry, model.Reconciliation{Outcome: model.OutcomeCompleted, OrderID: orderID, Status: model.OrderStatusCompleted}, http.StatusOK, "payment applied"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			facade := &testhelpers.PaymentFacadeStub{ApplyFn: func(context.Context, model.Transfer) (model.Reconciliation, error) {
				return tc.result, nil
			}}
			handler := NewWebhookHandler(facade, tc.policy, discardLogger())
			w := performRequest(t, http.MethodPost, "/hook", "/hook", handler.SePay, webhookBody(t, nil))
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			resp := decodeWebhook(t, w)
			if resp.Message != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, resp.Message)
			}
			if resp.Data == nil || resp.Data.Outcome != string(tc.result.Outcome) {
				t.Fatalf("unexpected data %+v", resp.Data)
			}
			if resp.Data.OrderID != tc.result.OrderID {
				t.Fatalf("expected order %q, got %q", tc.result.OrderID, resp.Data.OrderID)
			}
		})
	}
}

func TestWebhookHandlerErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid transfer", fmt.Errorf("%w: bad", domainErrors.ErrInvalidTransfer), http.StatusBadRequest},
		{"persistence unavailable", fmt.Errorf("%w: conn refused", domainErrors.ErrPersistenceUnavailable), http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			facade := &testhelpers.PaymentFacadeStub{ApplyFn: func(context.Context, model.Transfer) (model.Reconciliation, error) {
				return model.Reconciliation{}, tc.err
			}}
			handler := NewWebhookHandler(facade, config.MismatchAck, discardLogger())
			w := performRequest(t, http.MethodPost, "/hook", "/hook", handler.SePay, webhookBody(t, nil))
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			if decodeWebhook(t, w).Success {
				t.Fatal("failed delivery must not report success")
			}
		})
	}
}

func TestOrderHandlerGet(t *testing.T) {
	expires := time.Date(2024, 7, 25, 15, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		path   string
		fn     func(context.Context, string) (*model.Order, error)
		status int
	}{
		{
			name: "found",
			path: "/orders/" + orderID,
			fn: func(_ context.Context, id string) (*model.Order, error) {
				return &model.Order{ID: id, Amount: 2277000, Status: model.OrderStatusCompleted, ExpiresAt: expires}, nil
			},
			status: http.StatusOK,
		},
		{
			name: "uppercase id is canonicalised",
			path: "/orders/" + strings.ToUpper(orderID),
			fn: func(_ context.Context, id string) (*model.Order, error) {
				if id != orderID {
					return nil, domainErrors.ErrOrderNotFound
				}
				return &model.Order{ID: id, Amount: 2277000, Status: model.OrderStatusCompleted, ExpiresAt: expires}, nil
			},
			status: http.StatusOK,
		},
		{name: "invalid id", path: "/orders/not-a-uuid", status: http.StatusBadRequest},
		{
			name:   "unknown",
			path:   "/orders/" + orderID,
			fn:     func(context.Context, string) (*model.Order, error) { return nil, domainErrors.ErrOrderNotFound },
			status: http.StatusNotFound,
		},
		{
			name:   "unavailable",
			path:   "/orders/" + orderID,
			fn:     func(context.Context, string) (*model.Order, error) { return nil, domainErrors.ErrPersistenceUnavailable },
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "unexpected",
			path:   "/orders/" + orderID,
			fn:     func(context.Context, string) (*model.Order, error) { return nil, errors.New("boom") },
			status: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewOrderHandler(&testhelpers.PaymentFacadeStub{OrderFn: tc.fn}, websocket.NewHub(discardLogger()), discardLogger())
			w := performRequest(t, http.MethodGet, "/orders/:id", tc.path, handler.Get, nil)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			if tc.status != http.StatusOK {
				return
			}
			var resp dto.OrderResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.OrderID != orderID || resp.Amount != 2277000 || resp.Status != "completed" || !resp.ExpiresAt.Equal(expires) {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}

func TestOrderHandlerStream(t *testing.T) {
	hub := websocket.NewHub(discardLogger())
	t.Cleanup(hub.Close)
	handler := NewOrderHandler(&testhelpers.PaymentFacadeStub{}, hub, discardLogger())

	router := gin.New()
	router.GET("/orders/:id/stream", handler.Stream)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/orders/" + orderID + "/stream"
	conn, _, err := gw.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var upd websocket.OrderUpdate
	if err := conn.ReadJSON(&upd); err != nil {
		t.Fatalf("read initial status: %v", err)
	}
	if upd.OrderID != orderID || upd.Status != model.OrderStatusPending {
		t.Fatalf("unexpected initial update %+v", upd)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(orderID) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.OrderUpdated(orderID, model.OrderStatusCompleted)
	if err := conn.ReadJSON(&upd); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if upd.Status != model.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", upd.Status)
	}
}

func TestOrderHandlerStreamSeesTransitionAfterLookup(t *testing.T) {
	hub := websocket.NewHub(discardLogger())
	t.Cleanup(hub.Close)

	var calls atomic.Int32
	facade := &testhelpers.PaymentFacadeStub{OrderFn: func(_ context.Context, id string) (*model.Order, error) {
		if calls.Add(1) == 1 {
			// the payment lands right after the request was validated
			hub.OrderUpdated(id, model.OrderStatusCompleted)
			return &model.Order{ID: id, Amount: 1000, Status: model.OrderStatusPending}, nil
		}
		return &model.Order{ID: id, Amount: 1000, Status: model.OrderStatusCompleted}, nil
	}}
	handler := NewOrderHandler(facade, hub, discardLogger())

	router := gin.New()
	router.GET("/orders/:id/stream", handler.Stream)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	conn, _, err := gw.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/orders/"+orderID+"/stream", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var upd websocket.OrderUpdate
	if err := conn.ReadJSON(&upd); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if upd.Status != model.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", upd.Status)
	}
}

func TestOrderHandlerStreamRejectsUnknownOrder(t *testing.T) {
	facade := &testhelpers.PaymentFacadeStub{OrderFn: func(context.Context, string) (*model.Order, error) {
		return nil, domainErrors.ErrOrderNotFound
	}}
	handler := NewOrderHandler(facade, websocket.NewHub(discardLogger()), discardLogger())

	w := performRequest(t, http.MethodGet, "/orders/:id/stream", "/orders/"+orderID+"/stream", handler.Stream, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	w = performRequest(t, http.MethodGet, "/orders/:id/stream", "/orders/123/stream", handler.Stream, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestOrderHandlerStreamWithoutUpgrade(t *testing.T) {
	handler := NewOrderHandler(&testhelpers.PaymentFacadeStub{}, websocket.NewHub(discardLogger()), discardLogger())
	w := performRequest(t, http.MethodGet, "/orders/:id/stream", "/orders/"+orderID+"/stream", handler.Stream, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for plain request, got %d", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	handler := NewHealthHandler(&testhelpers.PaymentFacadeStub{}, discardLogger())
	if w := performRequest(t, http.MethodGet, "/healthz", "/healthz", handler.Check, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	handler = NewHealthHandler(&testhelpers.PaymentFacadeStub{HealthFn: func(context.Context) error {
		return errors.New("db down")
	}}, discardLogger())
	if w := performRequest(t, http.MethodGet, "/healthz", "/healthz", handler.Check, nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

var (
	_ PaymentFacade = (*testhelpers.PaymentFacadeStub)(nil)
	_ StatusStream  = (*websocket.Hub)(nil)
)
