package deriv

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalengine/internal/derivsim"
)

func newSim(t *testing.T, opts derivsim.Options) string {
	t.Helper()
	srv := httptest.NewServer(derivsim.New(opts, nil).Handler())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/websockets/v3"
}

func TestClient_Candles(t *testing.T) {
	url := newSim(t, derivsim.Options{Token: "tok"})
	c := NewClient(Config{URL: url, AppID: "1089", Token: "tok", Timeout: 5 * time.Second})

	candles, err := c.Candles(context.Background(), "frxEURUSD", 200, 300)
	require.NoError(t, err)
	require.Len(t, candles, 200)
	assert.Equal(t, int64(300), candles[1].Epoch-candles[0].Epoch)
	for _, k := range candles {
		assert.LessOrEqual(t, k.Low, k.High)
	}
}

func TestClient_CandlesAPIError(t *testing.T) {
	url := newSim(t, derivsim.Options{Symbols: []string{"R_100"}})
	c := NewClient(Config{URL: url})

	_, err := c.Candles(context.Background(), "BAD", 10, 60)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, "InvalidSymbol", apiErr.Code)
	assert.Equal(t, "candles", apiErr.MsgType)
}

func TestClient_AuthorizeRejected(t *testing.T) {
	url := newSim(t, derivsim.Options{Token: "right"})
	c := NewClient(Config{URL: url, Token: "wrong"})

	_, err := c.Candles(context.Background(), "R_100", 10, 60)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "InvalidToken", apiErr.Code)
}

func TestClient_Trade(t *testing.T) {
	url := newSim(t, derivsim.Options{Token: "tok"})
	c := NewClient(Config{URL: url, Token: "tok"})

	id, err := c.Trade(context.Background(), TradeRequest{Symbol: "R_100", ContractType: ContractPut, Amount: 1})
	require.NoError(t, err)
	assert.Positive(t, id)
}

func TestClient_TradeWithoutToken(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1"})
	_, err := c.Trade(context.Background(), TradeRequest{Symbol: "R_100", ContractType: ContractCall, Amount: 1})
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, c.HasToken())
}

func TestClient_DialFailure(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1", Timeout: time.Second})
	_, err := c.Candles(context.Background(), "R_100", 10, 60)
	assert.Error(t, err)
}

func TestSession_CancelledContext(t *testing.T) {
	url := newSim(t, derivsim.Options{})
	c := NewClient(Config{URL: url})

	s, err := c.Open(context.Background(), false)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Candles(ctx, "R_100", 5, 60)
	assert.Error(t, err)
}
