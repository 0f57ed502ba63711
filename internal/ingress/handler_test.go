package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callrelay/internal/logger"
	"callrelay/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeForwarder struct {
	mu   sync.Mutex
	envs []models.Envelope
	err  error
}

func (f *fakeForwarder) Forward(_ context.Context, env models.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.envs = append(f.envs, env)
	return nil
}

func (f *fakeForwarder) SuccessMessage() string { return "Data published to MQTT" }

func (f *fakeForwarder) FailureMessage(err error) string {
	return fmt.Sprintf("Failed to publish message: %v", err)
}

func (f *fakeForwarder) forwarded() []models.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Envelope(nil), f.envs...)
}

func newTestRouter(f Forwarder) *gin.Engine {
	router := gin.New()
	NewHandler(f, logger.NopLogger()).RegisterRoutes(router)
	return router
}

func postJSON(router *gin.Engine, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodPost, path, nil)
	} else {
		req = httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestReceiveSimpleCallFromQuery(t *testing.T) {
	f := &fakeForwarder{}
	router := newTestRouter(f)

	rec := postJSON(router,
		"/api/v1/simple?Phone=5551234&Branch=B1&Headnumber=H7&TriggerTime=2024-05-01T10:30:00",
		"", map[string]string{"Request-Id": "req-42"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","message":"Data published to MQTT"}`, rec.Body.String())

	envs := f.forwarded()
	require.Len(t, envs, 1)
	assert.Equal(t, "5551234", envs[0].ID)
	assert.Equal(t, "Phone: 5551234, Branch: B1, Headnumber: H7", envs[0].Body)
	assert.Equal(t, "req-42", envs[0].RequestID)
}

func TestReceiveSimpleCallFromBody(t *testing.T) {
	f := &fakeForwarder{}
	router := newTestRouter(f)

	body := `{"Phone":"5550000","Branch":"B2","Headnumber":"H1","TriggerTime":"2024-05-01T10:30:00Z"}`
	rec := postJSON(router, "/api/v1/simple", body, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	envs := f.forwarded()
	require.Len(t, envs, 1)
	assert.Equal(t, "5550000", envs[0].ID)
	assert.Equal(t, "Phone: 5550000, Branch: B2, Headnumber: H1", envs[0].Body)
	assert.Empty(t, envs[0].RequestID)
}

func TestReceiveSimpleCallQueryWinsOverBody(t *testing.T) {
	f := &fakeForwarder{}
	router := newTestRouter(f)

	body := `{"Phone":"9999999","Branch":"BX","Headnumber":"HX","TriggerTime":"2024-05-01T10:30:00"}`
	rec := postJSON(router,
		"/api/v1/simple?Phone=1111111&Branch=B1&Headnumber=H1&TriggerTime=2024-05-01T10:30:00",
		body, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	envs := f.forwarded()
	require.Len(t, envs, 1)
	assert.Equal(t, "1111111", envs[0].ID)
}

func TestReceiveSimpleCallIncompleteQueryFallsBackToBody(t *testing.T) {
	f := &fakeForwarder{}
	router := newTestRouter(f)

	body := `{"Phone":"5550000","Branch":"B2","Headnumber":"H1","TriggerTime":"2024-05-01T10:30:00"}`
	rec := postJSON(router, "/api/v1/simple?Phone=1111111", body, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	envs := f.forwarded()
	require.Len(t, envs, 1)
	assert.Equal(t, "5550000", envs[0].ID)
}

func TestReceiveSimpleCallMissingInput(t *testing.T) {
	f := &fakeForwarder{}
	router := newTestRouter(f)

	rec := postJSON(router, "/api/v1/simple", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"error":"Missing input: provide either query parameters or a JSON body."}`, rec.Body.String())
	assert.Empty(t, f.forwarded())
}

func TestReceiveSimpleCallInvalidTriggerTime(t *testing.T) {
	f := &fakeForwarder{}
	router := newTestRouter(f)

	body := `{"Phone":"5550000","Branch":"B2","Headnumber":"H1","TriggerTime":"yesterday"}`
	rec := postJSON(router, "/api/v1/simple", body, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["detail"], "Internal server error:")
	assert.Empty(t, f.forwarded())
}

func TestReceiveSimpleCallForwardFailure(t *testing.T) {
	f := &fakeForwarder{err: errors.New("broker down")}
	router := newTestRouter(f)

	rec := postJSON(router,
		"/api/v1/simple?Phone=5551234&Branch=B1&Headnumber=H7&TriggerTime=2024-05-01T10:30:00",
		"", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Failed to publish message: broker down"}`, rec.Body.String())
}

func TestReceiveMessageRelay(t *testing.T) {
	f := &fakeForwarder{}
	router := newTestRouter(f)

	body := `{"id":"5551234","body":"Phone: 5551234, Branch: B1, Headnumber: H7"}`
	rec := postJSON(router, "/ID_REQ_KC_STORE7D3BPACKET", body,
		map[string]string{"Request-Id": "req-7"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","message":"Data published to MQTT"}`, rec.Body.String())

	envs := f.forwarded()
	require.Len(t, envs, 1)
	assert.Equal(t, "5551234", envs[0].ID)
	assert.Equal(t, "Phone: 5551234, Branch: B1, Headnumber: H7", envs[0].Body)
	assert.Equal(t, "req-7", envs[0].RequestID)
}

func TestReceiveMessageKeepsEmbeddedRequestID(t *testing.T) {
	f := &fakeForwarder{}
	router := newTestRouter(f)

	body := `{"id":"5551234","body":"hello","request_id":"inner-1"}`
	rec := postJSON(router, "/ID_REQ_KC_STORE7D3BPACKET", body, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	envs := f.forwarded()
	require.Len(t, envs, 1)
	assert.Equal(t, "inner-1", envs[0].RequestID)
}

func TestReceiveMessageMalformedJSON(t *testing.T) {
	f := &fakeForwarder{}
	router := newTestRouter(f)

	rec := postJSON(router, "/ID_REQ_KC_STORE7D3BPACKET", `{"id":`, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["detail"], "Internal server error:")
	assert.Empty(t, f.forwarded())
}

func TestReceiveMessageMissingFields(t *testing.T) {
	f := &fakeForwarder{}
	router := newTestRouter(f)

	rec := postJSON(router, "/ID_REQ_KC_STORE7D3BPACKET", `{"id":"5551234"}`, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal server error: id and body are required"}`, rec.Body.String())
	assert.Empty(t, f.forwarded())
}

func TestReceiveMessageForwardFailure(t *testing.T) {
	f := &fakeForwarder{err: errors.New("broker down")}
	router := newTestRouter(f)

	body := `{"id":"5551234","body":"hello"}`
	rec := postJSON(router, "/ID_REQ_KC_STORE7D3BPACKET", body, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Failed to publish message: broker down"}`, rec.Body.String())
}
