package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publisherFunc func(ctx context.Context, routingKey string, event any) error

func (f publisherFunc) Publish(ctx context.Context, routingKey string, event any) error {
	return f(ctx, routingKey, event)
}

func TestPublishEventWithoutPublisher(t *testing.T) {
	SetPublisher(nil)
	require.NoError(t, PublishEvent(context.Background(), "chat.ws.global", WSEvent("global", 0, "ws_connect", "c1", 0, "", 1), nil))
}

func TestPublishEventCountsFailures(t *testing.T) {
	var gotKey string
	SetPublisher(publisherFunc(func(_ context.Context, key string, _ any) error {
		gotKey = key
		return assert.AnError
	}))
	t.Cleanup(func() { SetPublisher(nil) })

	before := testutil.ToFloat64(amqpPublishErrorsTotal)
	err := PublishEvent(context.Background(), "chat.ws.chat", WSEvent("chat", 5, "ws_error", "c2", 10, "boom", 1), BuildHeaders("rid", ""))

	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "chat.ws.chat", gotKey)
	assert.Equal(t, before+1, testutil.ToFloat64(amqpPublishErrorsTotal))
}

func TestBuildHeadersSkipsEmpty(t *testing.T) {
	assert.Equal(t, map[string]string{"x-request-id": "r"}, BuildHeaders("r", ""))
	assert.Empty(t, BuildHeaders("", ""))
}

func TestHTTPMetricsMiddlewareUsesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware())
	r.GET("/chats/:chat_id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/chats/:chat_id", "204")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/chats/42", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRequestIDHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	id := SetRequestID(req)
	require.NotEmpty(t, id)
	assert.Equal(t, id, req.Header.Get(RequestIDHeader))
	assert.Equal(t, id, SetRequestID(req))
	assert.Equal(t, id, RequestIDFromRequest(req))
}

func TestCommandAndFrameCounters(t *testing.T) {
	ok := commandsTotal.WithLabelValues("send_message", "ok")
	failed := commandsTotal.WithLabelValues("send_message", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	IncCommand("send_message", nil)
	IncCommand("send_message", assert.AnError)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}
