package models

import (
	"encoding/json"
	"time"
)

// Organization is a website together with the logo found for it
type Organization struct {
	Name       string    `json:"name,omitempty"`
	Website    string    `json:"website"`
	Logo       string    `json:"logo,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Strategy   string    `json:"strategy,omitempty"`
	Error      string    `json:"error,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// HasLogo reports whether a logo was found
func (o Organization) HasLogo() bool {
	return o.Logo != ""
}

// Opportunity is a funding or acceleration listing as exported by the
// listing scrapers. Only the organization fields are interpreted; every
// other field is kept in Extra and written back unchanged.
type Opportunity struct {
	Title               string
	OrganizationName    string
	OrganizationWebsite string
	OrganizationLogo    string
	Extra               map[string]json.RawMessage
}

var opportunityKeys = []string{"title", "organization_name", "organization_website", "organization_logo"}

// NeedsLogo reports whether the opportunity names a website but no logo yet
func (o Opportunity) NeedsLogo() bool {
	return o.OrganizationWebsite != "" && o.OrganizationLogo == ""
}

func (o *Opportunity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := []*string{&o.Title, &o.OrganizationName, &o.OrganizationWebsite, &o.OrganizationLogo}
	for i, key := range opportunityKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		delete(raw, key)
		// null or non-string values are left empty
		_ = json.Unmarshal(v, fields[i])
	}

	if len(raw) > 0 {
		o.Extra = raw
	}
	return nil
}

func (o Opportunity) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(o.Extra)+len(opportunityKeys))
	for k, v := range o.Extra {
		out[k] = v
	}
	out["title"] = o.Title
	if o.OrganizationName != "" {
		out["organization_name"] = o.OrganizationName
	}
	if o.OrganizationWebsite != "" {
		out["organization_website"] = o.OrganizationWebsite
	}
	if o.OrganizationLogo != "" {
		out["organization_logo"] = o.OrganizationLogo
	}
	return json.Marshal(out)
}
