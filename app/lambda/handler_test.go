package lambda

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lambda-feedback/isolate/internal/server"
)

func echoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Function", r.PathValue("function"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
}

func newTestHandler(t *testing.T, source ProxySource) *LambdaHandler {
	return NewLambdaHandler(LambdaHandlerParams{
		Config:   Config{ProxySource: source},
		Handlers: []*server.HttpHandler{server.AsHttpHandler("/{function}", echoHandler()).Handler},
		Context:  context.Background(),
		Logger:   zaptest.NewLogger(t),
	})
}

func header(single map[string]string, multi map[string][]string, key string) string {
	if v, ok := single[key]; ok {
		return v
	}

	if v := multi[key]; len(v) > 0 {
		return v[0]
	}

	return ""
}

func TestParseProxySource(t *testing.T) {
	source, err := ParseProxySource("api_gw_v2")
	require.NoError(t, err)
	assert.Equal(t, ProxySourceApiGatewayV2, source)

	_, err = ParseProxySource("sqs")
	assert.Error(t, err)
}

func TestLambdaHandler_InvalidProxySource(t *testing.T) {
	h := newTestHandler(t, "sqs")

	assert.Error(t, h.Start())
}

func TestProxyFunction_ApiGatewayV1(t *testing.T) {
	h := newTestHandler(t, ProxySourceApiGatewayV1)

	fn, err := newProxyFunction(h.config.ProxySource, h.mux)
	require.NoError(t, err)

	proxy, ok := fn.(func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error))
	require.True(t, ok)

	res, err := proxy(context.Background(), events.APIGatewayProxyRequest{
		Path:       "/echo",
		HTTPMethod: http.MethodPost,
		Body:       `{"input":1}`,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, `{"input":1}`, res.Body)
	assert.Equal(t, "echo", header(res.Headers, res.MultiValueHeaders, "Function"))
}

func TestProxyFunction_ApiGatewayV2(t *testing.T) {
	h := newTestHandler(t, ProxySourceApiGatewayV2)

	fn, err := newProxyFunction(h.config.ProxySource, h.mux)
	require.NoError(t, err)

	proxy, ok := fn.(func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error))
	require.True(t, ok)

	req := events.APIGatewayV2HTTPRequest{
		RawPath: "/divide",
		Body:    `{"input":{"a":1,"b":2}}`,
	}
	req.RequestContext.HTTP.Method = http.MethodPost

	res, err := proxy(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, `{"input":{"a":1,"b":2}}`, res.Body)
	assert.Equal(t, "divide", header(res.Headers, res.MultiValueHeaders, "Function"))
}

func TestProxyFunction_Alb(t *testing.T) {
	h := newTestHandler(t, ProxySourceAlb)

	fn, err := newProxyFunction(h.config.ProxySource, h.mux)
	require.NoError(t, err)

	_, ok := fn.(func(context.Context, events.ALBTargetGroupRequest) (events.ALBTargetGroupResponse, error))
	assert.True(t, ok)
}
