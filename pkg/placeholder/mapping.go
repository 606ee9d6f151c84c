package placeholder

import (
	"fmt"
	"maps"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Attributes are the platform and tenant values a Mapping is built from.
// Empty values are left out of the mapping, so templates referencing them
// fail to resolve instead of silently substituting an empty string.
type Attributes struct {
	ConsoleURL         string
	InternalDomain     string
	MonitoringURL      string
	Platform           string
	PublicVhostsDomain string
	Realm              string
	RestAccessTokenURL string
	RestAPIURL         string
	Tenant             string
	User               string
}

// NewMapping builds a mapping from attrs plus a fresh random hexadecimal
// token and a fresh random UUID.
func NewMapping(attrs Attributes) Mapping {
	m := Mapping{
		Random:     fmt.Sprintf("%08x", rand.Uint32()),
		RandomUUID: uuid.NewString(),
	}
	set := func(p Placeholder, value string) {
		if value != "" {
			m[p] = value
		}
	}
	set(ConsoleURL, attrs.ConsoleURL)
	set(InternalDomain, attrs.InternalDomain)
	set(MonitoringURL, attrs.MonitoringURL)
	set(Platform, attrs.Platform)
	set(PublicVhostsDomain, attrs.PublicVhostsDomain)
	set(Realm, attrs.Realm)
	set(RestAccessTokenURL, attrs.RestAccessTokenURL)
	set(RestAPIURL, attrs.RestAPIURL)
	set(Tenant, attrs.Tenant)
	set(User, attrs.User)
	return m
}

// Clone returns an independent copy of m.
func (m Mapping) Clone() Mapping {
	return maps.Clone(m)
}
