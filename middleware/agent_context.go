// middleware/agent_context.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AgentContextMiddleware extracts the agent identity and roles set by the
// Gateway after it validated the wallet session.
func AgentContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		agentID := c.Get("X-Agent-ID")
		if agentID == "" {
			log.Printf("❌ [AGENT_CTX] X-Agent-ID missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-Agent-ID — request must come through gateway with auth context",
			})
		}

		var roles []string
		if rolesStr := c.Get("X-Agent-Roles"); rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r != "" {
					roles = append(roles, r)
				}
			}
		}

		c.Locals("agent_id", agentID)
		c.Locals("agent_roles", roles)

		return c.Next()
	}
}

// RequireRole guards admin routes.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("agent_roles").([]string)
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient role",
		})
	}
}
