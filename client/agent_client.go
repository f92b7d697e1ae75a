// client/agent_client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"agent-mission-system/models"
	"agent-mission-system/services"
)

// ErrRemoteUnavailable mirrors the server-side taxonomy for transport errors:
// an operation without a confirmed response must be treated as not-applied.
var ErrRemoteUnavailable = errors.New("mission service unavailable")

// AgentClient talks to the mission service and keeps the LocalSession cache in
// step with confirmed results. It never decides credits itself — that moved
// server-side.
type AgentClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Sessions   *SessionStore
}

func NewAgentClient(baseURL, token string, sessions *SessionStore) *AgentClient {
	return &AgentClient{
		BaseURL:  baseURL,
		Token:    token,
		Sessions: sessions,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *AgentClient) do(ctx context.Context, method, path string, body interface{}, agentID string) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if agentID != "" {
		req.Header.Set("X-Agent-ID", agentID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return data, resp.StatusCode, nil
}

// Connect resolves the wallet into an identity on the service and caches it
// locally. A failed cache write is logged, not surfaced — the identity is real
// either way.
func (c *AgentClient) Connect(ctx context.Context, walletAddress string) (*models.Agent, error) {
	body := map[string]string{"wallet_address": walletAddress}
	data, status, err := c.do(ctx, http.MethodPost, "/auth/connect", body, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf("connect failed: status %d: %s", status, string(data))
	}

	var agent models.Agent
	if err := json.Unmarshal(data, &agent); err != nil {
		return nil, fmt.Errorf("connect: bad response shape: %w", err)
	}

	if err := c.Sessions.Save(&LocalSession{Agent: agent, LastSyncAt: time.Now()}); err != nil {
		log.Printf("⚠️  Session cache write failed: %v", err)
	}
	return &agent, nil
}

// Disconnect clears the local session only; the remote record stays.
func (c *AgentClient) Disconnect() error {
	return c.Sessions.Clear()
}

// CompleteMission replays safely: the service's claim check makes repeated
// calls terminate in AlreadyClaimed rather than double-crediting.
func (c *AgentClient) CompleteMission(ctx context.Context, missionCode string) (*services.CreditResult, error) {
	session := c.Sessions.Load()
	if session == nil {
		return nil, errors.New("no active session — connect a wallet first")
	}

	data, status, err := c.do(ctx, http.MethodPost, "/s/missions/"+missionCode+"/complete", nil, session.Agent.ID)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusBadGateway {
		return nil, fmt.Errorf("complete failed: status %d: %s", status, string(data))
	}

	var result services.CreditResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("complete: bad response shape: %w", err)
	}

	// Write-back on confirmed credit only.
	if result.Status == services.CreditStatusCredited {
		session.Agent.TotalPoints = result.NewBalance
		session.Agent.ExperiencePoints = result.NewBalance
		if result.NewLevel > session.Agent.Level {
			session.Agent.Level = result.NewLevel
		}
		session.LastSyncAt = time.Now()
		if err := c.Sessions.Save(session); err != nil {
			log.Printf("⚠️  Session cache write failed: %v", err)
		}
	}
	return &result, nil
}

// Resync re-reads the authoritative identity and refreshes the cache. This is
// the recovery path for the claim-recorded-but-balance-stale window.
func (c *AgentClient) Resync(ctx context.Context) (*models.Agent, error) {
	session := c.Sessions.Load()
	if session == nil {
		return nil, errors.New("no active session — connect a wallet first")
	}

	data, status, err := c.do(ctx, http.MethodGet, "/s/agent/me", nil, session.Agent.ID)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("resync failed: status %d: %s", status, string(data))
	}

	var agent models.Agent
	if err := json.Unmarshal(data, &agent); err != nil {
		return nil, fmt.Errorf("resync: bad response shape: %w", err)
	}

	session.Agent = agent
	session.LastSyncAt = time.Now()
	if err := c.Sessions.Save(session); err != nil {
		log.Printf("⚠️  Session cache write failed: %v", err)
	}
	return &agent, nil
}

// Leaderboard fetches the top agents by points.
func (c *AgentClient) Leaderboard(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	path := fmt.Sprintf("/leaderboard?limit=%d", limit)
	data, status, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("leaderboard failed: status %d: %s", status, string(data))
	}

	var entries []map[string]interface{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("leaderboard: bad response shape: %w", err)
	}
	return entries, nil
}
