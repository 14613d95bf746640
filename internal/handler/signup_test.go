package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/nivobank/nivo/internal/config"
	"github.com/nivobank/nivo/internal/errHandler"
	"github.com/nivobank/nivo/internal/helper"
	"github.com/nivobank/nivo/internal/notifier"
	"github.com/nivobank/nivo/internal/otp"
	"github.com/nivobank/nivo/internal/session"
	"github.com/nivobank/nivo/internal/signup"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type noopProducer struct{}

func (p *noopProducer) ProduceMessage(topic, message string) error {
	return nil
}

type signupTestFixture struct {
	handler *RouteHandler
	store   *session.Store
	wg      sync.WaitGroup
}

func newSignupTestHandler(t *testing.T) *signupTestFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := newTestLogger()
	store := session.NewStore(client, 30*time.Minute)
	producer := &noopProducer{}

	machine := signup.NewMachine(store, nil, otp.New(6, 5*time.Minute),
		notifier.NewLogNotifier(logger), nil, producer, logger)

	fx := &signupTestFixture{store: store}

	cfg := &config.Config{}
	cfg.BaseURL = "http://localhost"

	fx.handler = NewRouteHandler(&RouteHandler{
		Signup:     machine,
		ErrHandler: errHandler.New("", cfg.BaseURL, &stubMailer{}, logger),
		Helper:     helper.New(&cfg.BaseURL, &fx.wg, nil),
		Kafka:      producer,
		Config:     cfg,
	})

	return fx
}

func (fx *signupTestFixture) post(t *testing.T, handlerFunc http.HandlerFunc, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()

	requestBody, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest("POST", "/signup", bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handlerFunc(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)
	return response
}

func TestHandleSignupRequestOtp_InvalidPhone(t *testing.T) {
	fx := newSignupTestHandler(t)

	rr := fx.post(t, fx.handler.HandleSignupRequestOtp, map[string]any{
		"phone_number": "12345",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandleSignupRequestOtp_ReturnsSession(t *testing.T) {
	fx := newSignupTestHandler(t)

	rr := fx.post(t, fx.handler.HandleSignupRequestOtp, map[string]any{
		"phone_number": "9876543210",
		"country_code": "+91",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	data, ok := decodeBody(t, rr)["data"].(map[string]interface{})
	require.True(t, ok, "Expected response['data'] to be a map")
	require.NotEmpty(t, data["session_id"])
	require.Equal(t, float64(300), data["expires_in"])
}

func TestHandleSignupConfirmOtp_WrongCode(t *testing.T) {
	fx := newSignupTestHandler(t)

	rr := fx.post(t, fx.handler.HandleSignupRequestOtp, map[string]any{
		"phone_number": "9876543210",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	data := decodeBody(t, rr)["data"].(map[string]interface{})
	sessionID := data["session_id"].(string)

	sess, found, err := fx.store.Get(context.Background(), sessionID)
	require.NoError(t, err)
	require.True(t, found)

	wrong := "000000"
	if sess.MobileOTP.Code == wrong {
		wrong = "000001"
	}

	rr = fx.post(t, fx.handler.HandleSignupConfirmOtp, map[string]any{
		"session_id": sessionID,
		"otp":        wrong,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	errData, ok := decodeBody(t, rr)["error"].(map[string]interface{})
	require.True(t, ok, "Expected response['error'] to be a map")
	require.Equal(t, float64(2), errData["attempts_left"])
}

func TestHandleSignupConfirmOtp_UnknownSession(t *testing.T) {
	fx := newSignupTestHandler(t)

	rr := fx.post(t, fx.handler.HandleSignupConfirmOtp, map[string]any{
		"session_id": "nope",
		"otp":        "123456",
	})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleSignupPersonalDetails_BeforePhoneVerified(t *testing.T) {
	fx := newSignupTestHandler(t)

	rr := fx.post(t, fx.handler.HandleSignupRequestOtp, map[string]any{
		"phone_number": "9876543210",
	})
	data := decodeBody(t, rr)["data"].(map[string]interface{})
	sessionID := data["session_id"].(string)

	rr = fx.post(t, fx.handler.HandleSignupPersonalDetails, map[string]any{
		"session_id":    sessionID,
		"full_name":     "Priya Sharma",
		"email":         "priya@example.com",
		"date_of_birth": "1995-03-15",
		"gender":        "F",
	})
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandleSignupPersonalDetails_BadDateFormat(t *testing.T) {
	fx := newSignupTestHandler(t)

	rr := fx.post(t, fx.handler.HandleSignupPersonalDetails, map[string]any{
		"session_id":    "any",
		"date_of_birth": "15/03/1995",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}
