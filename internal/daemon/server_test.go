package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	s := newTestStore(t)
	sessions := NewSessionManager(s, time.Hour, time.Hour, nil)
	t.Cleanup(sessions.Shutdown)
	registry := NewRegistry(s, nil, nil, nil, sessions, nil)
	srv := NewServer(registry, sessions, t.TempDir(), nil)
	require.NoError(t, srv.Start(0))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv, NewClient(srv.Addr().String())
}

func TestServerHealthReportsOK(t *testing.T) {
	_, client := newTestServer(t)
	require.True(t, client.Available(context.Background()))
}

func TestServerRPCListMethods(t *testing.T) {
	_, client := newTestServer(t)
	raw, err := client.Call(context.Background(), "list_methods", nil)
	require.NoError(t, err)

	var result struct {
		Methods []string `json:"methods"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Equal(t, len(result.Methods), result.Count)
	require.Contains(t, result.Methods, "get_symbol")
	require.Contains(t, result.Methods, "assemble_context")
}

func TestServerRPCUnknownMethod(t *testing.T) {
	_, client := newTestServer(t)
	_, err := client.Call(context.Background(), "not_a_real_method", nil)
	require.Error(t, err)
}

func TestServerRPCBatch(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `[{"jsonrpc":"2.0","method":"list_methods","params":{},"id":1},{"jsonrpc":"2.0","method":"index_stats","params":{},"id":2}]`
	resp, err := http.Post("http://"+srv.Addr().String()+"/rpc", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var batch []Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&batch))
	require.Len(t, batch, 2)
	require.Nil(t, batch[0].Error)
}

func TestAutoRouteFallsBackWhenDaemonUnavailable(t *testing.T) {
	client := NewClient("127.0.0.1:1") // nothing listening
	result, err := AutoRoute(context.Background(), client, "get_symbol", map[string]string{"name": "X"}, func() (string, error) {
		return "fallback-used", nil
	})
	require.NoError(t, err)
	require.Equal(t, "fallback-used", result)
}
