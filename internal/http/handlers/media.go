package handlers

import (
	"path/filepath"
	"strings"

	applog "tradepost/internal/log"

	"github.com/gofiber/fiber/v2"
)

// Media serves uploaded files from root. The wildcard segment is checked
// against traversal before it ever reaches the filesystem; probes are logged
// and answered with a plain 404.
func Media(root string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Params("*")
		rawLower := strings.ToLower(path)
		// Block encoded traversal attempts as well as raw .. or null bytes
		if strings.Contains(rawLower, "..") || strings.Contains(rawLower, "%2e") || strings.Contains(rawLower, "\x00") {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return c.SendStatus(fiber.StatusNotFound)
		}
		clean := filepath.Clean(path)
		if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return c.SendStatus(fiber.StatusNotFound)
		}
		full := filepath.Join(root, clean)
		return c.SendFile(full, true)
	}
}
