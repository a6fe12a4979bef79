package domain

// User is the subject an assignment is evaluated for.
// Either identifier may be empty; the remote service decides what it can
// evaluate with the context it receives.
type User struct {
	UserID             string              `json:"user_id,omitempty"`
	DeviceID           string              `json:"device_id,omitempty"`
	Country            string              `json:"country,omitempty"`
	Region             string              `json:"region,omitempty"`
	City               string              `json:"city,omitempty"`
	Language           string              `json:"language,omitempty"`
	Platform           string              `json:"platform,omitempty"`
	Version            string              `json:"version,omitempty"`
	OS                 string              `json:"os,omitempty"`
	DeviceManufacturer string              `json:"device_manufacturer,omitempty"`
	DeviceModel        string              `json:"device_model,omitempty"`
	Carrier            string              `json:"carrier,omitempty"`
	Library            string              `json:"library,omitempty"`
	UserProperties     map[string]any      `json:"user_properties,omitempty"`
	Groups             map[string][]string `json:"groups,omitempty"`
}

// HasIdentity reports whether at least one identifier is set.
func (u *User) HasIdentity() bool {
	return u != nil && (u.UserID != "" || u.DeviceID != "")
}

// FetchOptions narrows a fetch and controls server-side tracking.
type FetchOptions struct {
	// FlagKeys limits the evaluation to these flags. Order is irrelevant and
	// nil behaves exactly like an empty slice.
	FlagKeys []string

	// TracksAssignment and TracksExposure override the server default when set.
	TracksAssignment *bool
	TracksExposure   *bool
}

// Bool returns a pointer to b, for the tri-state tracking options.
func Bool(b bool) *bool {
	return &b
}
