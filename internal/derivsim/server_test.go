package derivsim

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/websockets/v3?app_id=1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req map[string]any) map[string]any {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	var resp map[string]any
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestCandles_DeterministicAndAligned(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 7, 30, 0, time.UTC)
	a := Candles("R_100", 50, 5*time.Minute, now)
	b := Candles("R_100", 50, 5*time.Minute, now)
	require.Len(t, a, 50)
	assert.Equal(t, a, b)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC).Unix(), a[49]["epoch"])

	c := Candles("R_50", 50, 5*time.Minute, now)
	assert.NotEqual(t, a[49]["close"], c[49]["close"])
}

func TestServer_TicksHistory(t *testing.T) {
	sim := New(Options{Symbols: []string{"R_100"}}, nil)
	srv := httptest.NewServer(sim.Handler())
	defer srv.Close()
	conn := dial(t, srv)

	resp := roundTrip(t, conn, map[string]any{
		"ticks_history": "R_100", "count": 10, "granularity": 300, "style": "candles", "req_id": 7,
	})
	assert.Equal(t, "candles", resp["msg_type"])
	assert.EqualValues(t, 7, resp["req_id"])
	assert.Len(t, resp["candles"], 10)

	resp = roundTrip(t, conn, map[string]any{"ticks_history": "NOPE", "req_id": 8})
	require.Contains(t, resp, "error")
	assert.Equal(t, "InvalidSymbol", resp["error"].(map[string]any)["code"])
}

func TestServer_TradeFlow(t *testing.T) {
	sim := New(Options{Token: "tok"}, nil)
	srv := httptest.NewServer(sim.Handler())
	defer srv.Close()
	conn := dial(t, srv)

	proposal := map[string]any{
		"proposal": 1, "amount": 2.0, "basis": "stake", "contract_type": "CALL",
		"currency": "USD", "duration": 5, "duration_unit": "m", "symbol": "R_100",
	}
	resp := roundTrip(t, conn, proposal)
	assert.Equal(t, "AuthorizationRequired", resp["error"].(map[string]any)["code"])

	resp = roundTrip(t, conn, map[string]any{"authorize": "wrong"})
	assert.Equal(t, "InvalidToken", resp["error"].(map[string]any)["code"])

	resp = roundTrip(t, conn, map[string]any{"authorize": "tok"})
	require.NotContains(t, resp, "error")

	resp = roundTrip(t, conn, proposal)
	require.NotContains(t, resp, "error")
	id := resp["proposal"].(map[string]any)["id"].(string)

	resp = roundTrip(t, conn, map[string]any{"buy": id, "price": 2.0})
	require.NotContains(t, resp, "error")
	assert.EqualValues(t, 100001, resp["buy"].(map[string]any)["contract_id"])

	resp = roundTrip(t, conn, map[string]any{"buy": id, "price": 2.0})
	assert.Equal(t, "InvalidContractProposal", resp["error"].(map[string]any)["code"])
}

func TestServer_Health(t *testing.T) {
	srv := httptest.NewServer(New(Options{}, nil).Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
