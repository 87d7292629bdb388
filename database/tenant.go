package database

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var schemaNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// GetTenantDB returns a *gorm.DB bound to the request's tenant. It prefers
// the per-request transaction opened by middlewares.TenantTx, whose
// search_path is already pinned, and falls back to a fresh tenant-scoped
// session for routes running outside a transaction.
func GetTenantDB(c *fiber.Ctx) (*gorm.DB, error) {
	if v := c.Locals("tx"); v != nil {
		if tx, ok := v.(*gorm.DB); ok && tx != nil {
			return tx, nil
		}
	}
	schema, _ := c.Locals("schema").(string)
	return TenantSession(schema)
}

// TenantSession opens a session with search_path pinned to the given schema.
// Used by webhook handlers, which resolve the tenant from a routing index
// instead of the request's auth context.
func TenantSession(schema string) (*gorm.DB, error) {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		return nil, errors.New("tenant schema missing")
	}
	if !schemaNameRe.MatchString(schema) {
		return nil, fmt.Errorf("invalid tenant schema %q", schema)
	}
	if DB == nil {
		return nil, errors.New("database not initialized")
	}

	sess := DB.Session(&gorm.Session{})
	if err := sess.Exec(`SET search_path = "` + schema + `", public`).Error; err != nil {
		return nil, fmt.Errorf("set search_path failed: %w", err)
	}
	return sess, nil
}
