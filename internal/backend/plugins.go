package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// PluginStatus is one entry from the backend's plugin listing
type PluginStatus struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	Installed bool   `json:"installed"`
}

// InstalledPlugins returns the set of plugin ids the backend reports as
// installed. Results are cached for the configured TTL so UI queries do not
// hammer the backend.
func (c *Client) InstalledPlugins(ctx context.Context) (map[string]bool, error) {
	c.mu.Lock()
	if c.installed != nil && time.Since(c.installedAt) < c.cacheTTL {
		cached := c.installed
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	payload, err := c.Do(ctx, http.MethodGet, "/api/v1/plugins", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list backend plugins: %w", err)
	}

	installed := make(map[string]bool)
	rawList, _ := payload["plugins"].([]interface{})
	for _, raw := range rawList {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := entry["id"].(string)
		if id == "" {
			continue
		}
		// Absent installed flag means installed; the backend only lists
		// plugins it knows about.
		if flag, present := entry["installed"].(bool); present && !flag {
			continue
		}
		installed[id] = true
	}

	c.mu.Lock()
	c.installed = installed
	c.installedAt = time.Now()
	c.mu.Unlock()

	return installed, nil
}

// InvalidateInstalledCache clears the cached installed-plugin set
func (c *Client) InvalidateInstalledCache() {
	c.mu.Lock()
	c.installed = nil
	c.mu.Unlock()
}
