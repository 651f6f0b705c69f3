package websocket

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/corehub/genparams"
	"github.com/sage-x-project/corehub/hub"
	"github.com/sage-x-project/corehub/internal/logger"
)

func incrementReducer(state any, action hub.Action) any {
	s, _ := state.(map[string]any)
	if s == nil {
		s = map[string]any{"count": 0}
	}
	if action.Type == "inc" {
		if c, ok := s["count"].(float64); ok {
			s["count"] = c + 1
		}
	}
	return s
}

func identityFilter(_ *hub.FilterContext, action hub.Action) (hub.Verdict, error) {
	return hub.Verdict{Kind: hub.VerdictAccept, Action: action}, nil
}

func testKeypair(t *testing.T) *genparams.Keypair {
	t.Helper()
	kp, err := genparams.NewKeypair()
	require.NoError(t, err)
	return kp
}

func discardLogger() logger.Logger {
	return logger.NewLogger(io.Discard, logger.FatalLevel+1)
}

func TestServerUpgradeAndConnectRoundTrip(t *testing.T) {
	hydrate := func(_ context.Context, key string, _ any) (any, error) {
		return map[string]any{"count": float64(0)}, nil
	}
	log := discardLogger()
	reg := hub.NewRegistry(hydrate, incrementReducer, identityFilter, log)
	h := hub.NewHub(reg, genparams.NewService(testKeypair(t)), log)

	srv := NewServer(h, func(r *http.Request) string {
		return strings.TrimPrefix(r.URL.Path, "/ws/")
	}, nil, log, 0, 0)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/room-a"
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "connect", "lastSeen": ""}))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var resp map[string]any
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, "connected", resp["type"])
}
