package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whalewatch/whalewatch/internal/domain/entities"
	"github.com/whalewatch/whalewatch/pkg/logger"
)

type stubVerifier struct {
	ok bool
}

func (s *stubVerifier) VerifySignature([]byte, string) bool { return s.ok }

type fakeLogStore struct {
	created []json.RawMessage
	err     error
}

func (f *fakeLogStore) Create(_ context.Context, source entities.WebhookSource, payload json.RawMessage) (*entities.WebhookLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, payload)
	return &entities.WebhookLog{ID: uuid.New(), Source: source, Payload: payload, ReceivedAt: time.Now().UTC()}, nil
}

func webhookRouter(logs WebhookLogStore, verdict bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandlers(logs, &stubVerifier{ok: verdict}, &stubVerifier{ok: verdict}, logger.NewLogger(zap.NewNop()))

	r := gin.New()
	r.POST("/webhooks/alchemy", h.AlchemyWebhook)
	r.POST("/webhooks/moralis-streams", h.MoralisStreamsWebhook)
	return r
}

func TestWebhook_ValidSignatureAccepted(t *testing.T) {
	store := &fakeLogStore{}
	router := webhookRouter(store, true)

	body := []byte(`{"type":"ADDRESS_ACTIVITY","event":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/alchemy", bytes.NewReader(body))
	req.Header.Set("X-Alchemy-Signature", "abc123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, store.created, 1)
	assert.JSONEq(t, string(body), string(store.created[0]), "the body is persisted verbatim")

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestWebhook_BadSignatureLeavesNoTrace(t *testing.T) {
	store := &fakeLogStore{}
	router := webhookRouter(store, false)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/alchemy", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Alchemy-Signature", "forged")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, store.created, "a rejected delivery must not be persisted")
}

func TestWebhook_PersistFailureIs500(t *testing.T) {
	store := &fakeLogStore{err: errors.New("database unavailable")}
	router := webhookRouter(store, true)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/moralis-streams", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("x-signature", "0xabc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhook_MoralisAccepted(t *testing.T) {
	store := &fakeLogStore{}
	router := webhookRouter(store, true)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/moralis-streams", bytes.NewReader([]byte(`{"confirmed":true}`)))
	req.Header.Set("x-signature", "0xabc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, store.created, 1)
}
