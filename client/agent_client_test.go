package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"agent-mission-system/models"
	"agent-mission-system/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "gateway-token"

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConnectCachesSession(t *testing.T) {
	agent := models.Agent{
		ID:            "a1",
		WalletAddress: "ABC123xyzABC123xyzABC123xyzABC123xyz",
		Codename:      "agent_ABC123XY_ab12",
		TotalPoints:   1,
		Level:         1,
	}
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/connect", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, agent.WalletAddress, req["wallet_address"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(agent)
	})

	store := NewSessionStore(t.TempDir())
	c := NewAgentClient(srv.URL, testToken, store)

	got, err := c.Connect(context.Background(), agent.WalletAddress)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)

	session := store.Load()
	require.NotNil(t, session)
	assert.Equal(t, int64(1), session.Agent.TotalPoints)
}

func TestCompleteMissionWritesBackOnCredit(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/s/missions/CLICK_MISSION/complete", r.URL.Path)
		assert.Equal(t, "a1", r.Header.Get("X-Agent-ID"))

		json.NewEncoder(w).Encode(services.CreditResult{
			Status:     services.CreditStatusCredited,
			NewBalance: 2,
			NewLevel:   1,
		})
	})

	store := NewSessionStore(t.TempDir())
	require.NoError(t, store.Save(&LocalSession{Agent: models.Agent{ID: "a1", TotalPoints: 1, Level: 1}}))
	c := NewAgentClient(srv.URL, testToken, store)

	result, err := c.CompleteMission(context.Background(), "CLICK_MISSION")
	require.NoError(t, err)
	assert.Equal(t, services.CreditStatusCredited, result.Status)

	session := store.Load()
	require.NotNil(t, session)
	assert.Equal(t, int64(2), session.Agent.TotalPoints, "cache reflects the credited balance")
}

func TestCompleteMissionAlreadyClaimedLeavesCacheAlone(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(services.CreditResult{Status: services.CreditStatusAlreadyClaimed})
	})

	store := NewSessionStore(t.TempDir())
	require.NoError(t, store.Save(&LocalSession{Agent: models.Agent{ID: "a1", TotalPoints: 7}}))
	c := NewAgentClient(srv.URL, testToken, store)

	result, err := c.CompleteMission(context.Background(), "CLICK_MISSION")
	require.NoError(t, err)
	assert.Equal(t, services.CreditStatusAlreadyClaimed, result.Status)

	session := store.Load()
	require.NotNil(t, session)
	assert.Equal(t, int64(7), session.Agent.TotalPoints)
}

func TestCompleteMissionWithoutSession(t *testing.T) {
	c := NewAgentClient("http://127.0.0.1:0", testToken, NewSessionStore(t.TempDir()))

	_, err := c.CompleteMission(context.Background(), "CLICK_MISSION")
	assert.Error(t, err)
}

func TestResyncRefreshesCache(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/s/agent/me", r.URL.Path)
		json.NewEncoder(w).Encode(models.Agent{ID: "a1", TotalPoints: 42, Level: 3})
	})

	store := NewSessionStore(t.TempDir())
	require.NoError(t, store.Save(&LocalSession{Agent: models.Agent{ID: "a1", TotalPoints: 1, Level: 1}}))
	c := NewAgentClient(srv.URL, testToken, store)

	agent, err := c.Resync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), agent.TotalPoints)

	session := store.Load()
	require.NotNil(t, session)
	assert.Equal(t, int64(42), session.Agent.TotalPoints)
	assert.Equal(t, 3, session.Agent.Level)
}

func TestTransportFailureIsRemoteUnavailable(t *testing.T) {
	store := NewSessionStore(t.TempDir())
	c := NewAgentClient("http://127.0.0.1:1", testToken, store)

	_, err := c.Connect(context.Background(), "ABC123xyzABC123xyzABC123xyzABC123xyz")
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}
