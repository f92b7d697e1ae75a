package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAgentTestApp(svc *AgentService) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("agent_id", "11111111-1111-1111-1111-111111111111")
		return c.Next()
	})
	app.Post("/agent/avatar", svc.UploadAvatar)
	app.Post("/admin/credits/grant", svc.GrantCredit)
	return app
}

func TestUploadAvatarRequiresFile(t *testing.T) {
	app := newAgentTestApp(NewAgentService(nil, nil, nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/agent/avatar", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGrantCreditEndpointPaysAtMostOnce(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addAgent("11111111-1111-1111-1111-111111111111", 0)
	app := newAgentTestApp(NewAgentService(nil, ledger, NewCreditFlow(ledger)))

	grant := func() CreditResult {
		body := `{"agent_id":"11111111-1111-1111-1111-111111111111","action_code":"OP_REWARD","amount":5}`
		req := httptest.NewRequest(http.MethodPost, "/admin/credits/grant", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var result CreditResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		return result
	}

	first := grant()
	assert.Equal(t, CreditStatusCredited, first.Status)
	assert.Equal(t, int64(5), first.NewBalance)

	second := grant()
	assert.Equal(t, CreditStatusAlreadyClaimed, second.Status)
}

func TestGrantCreditEndpointRejectsBadInput(t *testing.T) {
	app := newAgentTestApp(NewAgentService(nil, newFakeLedger(), NewCreditFlow(newFakeLedger())))

	cases := []struct {
		name string
		body string
	}{
		{"bad agent id", `{"agent_id":"nope","action_code":"OP_REWARD","amount":5}`},
		{"missing action code", `{"agent_id":"11111111-1111-1111-1111-111111111111","amount":5}`},
		{"negative amount", `{"agent_id":"11111111-1111-1111-1111-111111111111","action_code":"OP_REWARD","amount":-1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/credits/grant", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}
