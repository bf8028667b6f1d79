// Package domain contains core domain types for the PrepPal gating engine.
package domain

import (
	"strings"

	"github.com/google/uuid"
)

// GatedSite is a host pattern whose navigations may be intercepted.
type GatedSite struct {
	ID          string `json:"id" yaml:"id"`
	HostPattern string `json:"value" yaml:"value"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
}

// NewGatedSite creates an enabled site with a fresh identifier.
func NewGatedSite(pattern string) GatedSite {
	return GatedSite{
		ID:          "custom-" + uuid.NewString(),
		HostPattern: strings.TrimSpace(pattern),
		Enabled:     true,
	}
}

// DefaultGatedSites returns the sites seeded when nothing has been configured.
func DefaultGatedSites() []GatedSite {
	return []GatedSite{
		{ID: "youtube", HostPattern: "youtube.com", Enabled: true},
		{ID: "instagram", HostPattern: "instagram.com", Enabled: true},
	}
}

// CountEnabled returns how many sites are enabled.
func CountEnabled(sites []GatedSite) int {
	n := 0
	for _, s := range sites {
		if s.Enabled {
			n++
		}
	}
	return n
}
