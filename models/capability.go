// Package models contains domain entities persisted through gorm
package models

import (
	"slices"
	"sort"
)

// Capability is a closed set of permission flags granted through roles
type Capability string

const (
	CapabilityAdmin                    Capability = "admin"
	CapabilityAdsAnalyzer              Capability = "ads_analyzer"
	CapabilityAdsAnalyzerRecipients    Capability = "ads_analyzer.recipients"
	CapabilityBlocklistRead            Capability = "blocklist_manager.read"
	CapabilityBlocklistCreate          Capability = "blocklist_manager.create"
	CapabilityBlocklistDelete          Capability = "blocklist_manager.delete"
	CapabilityBlocklistExport          Capability = "blocklist_manager.export"
	CapabilityBSTERead                 Capability = "bste.read"
	CapabilityBSTECreate               Capability = "bste.create"
	CapabilityBSTEDelete               Capability = "bste.delete"
	CapabilityBSTEExport               Capability = "bste.export"
	CapabilityCTLRead                  Capability = "ctl.read"
	CapabilityCTLCreate                Capability = "ctl.create"
	CapabilityCTLDelete                Capability = "ctl.delete"
	CapabilityCTLExport                Capability = "ctl.export"
	CapabilityCTLVet                   Capability = "ctl.vet"
	CapabilityCTLVetAdmin              Capability = "ctl.vet_admin"
	CapabilityCTLSeeAll                Capability = "ctl.see_all"
	CapabilityDomainManagerRead        Capability = "domain_manager.read"
	CapabilityDomainManagerCreate      Capability = "domain_manager.create"
	CapabilityDomainManagerDelete      Capability = "domain_manager.delete"
	CapabilityBrandSuitabilityHighRisk Capability = "research.brand_suitability_high_risk"
	CapabilityVettingData              Capability = "research.vetting_data"
	CapabilityDashboard                Capability = "dashboard"
	CapabilityBilling                  Capability = "billing"
)

var allCapabilities = []Capability{
	CapabilityAdmin,
	CapabilityAdsAnalyzer,
	CapabilityAdsAnalyzerRecipients,
	CapabilityBlocklistRead,
	CapabilityBlocklistCreate,
	CapabilityBlocklistDelete,
	CapabilityBlocklistExport,
	CapabilityBSTERead,
	CapabilityBSTECreate,
	CapabilityBSTEDelete,
	CapabilityBSTEExport,
	CapabilityCTLRead,
	CapabilityCTLCreate,
	CapabilityCTLDelete,
	CapabilityCTLExport,
	CapabilityCTLVet,
	CapabilityCTLVetAdmin,
	CapabilityCTLSeeAll,
	CapabilityDomainManagerRead,
	CapabilityDomainManagerCreate,
	CapabilityDomainManagerDelete,
	CapabilityBrandSuitabilityHighRisk,
	CapabilityVettingData,
	CapabilityDashboard,
	CapabilityBilling,
}

// AllCapabilities returns every known capability in declaration order
func AllCapabilities() []Capability {
	return slices.Clone(allCapabilities)
}

// Valid reports whether c is one of the declared capabilities
func (c Capability) Valid() bool {
	return slices.Contains(allCapabilities, c)
}

func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string into a known capability
func ParseCapability(s string) (Capability, bool) {
	c := Capability(s)
	return c, c.Valid()
}

// ParseCapabilities splits input into known capabilities and the unknown names
func ParseCapabilities(in []string) (known []Capability, unknown []string) {
	for _, s := range in {
		if c, ok := ParseCapability(s); ok {
			if !slices.Contains(known, c) {
				known = append(known, c)
			}
			continue
		}
		unknown = append(unknown, s)
	}
	return known, unknown
}

// CapabilitySet is the effective permission set of a user
type CapabilitySet map[Capability]struct{}

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether c is granted. The admin capability implies every other one.
func (s CapabilitySet) Has(c Capability) bool {
	if _, ok := s[CapabilityAdmin]; ok {
		return true
	}
	_, ok := s[c]
	return ok
}

// HasAny reports whether at least one of caps is granted
func (s CapabilitySet) HasAny(caps ...Capability) bool {
	for _, c := range caps {
		if s.Has(c) {
			return true
		}
	}
	return false
}

// List returns the granted capabilities sorted by name
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
