package models

// SameSite is the cookie same-site policy as reported by the browser.
type SameSite string

const (
	SameSiteStrict SameSite = "Strict"
	SameSiteLax    SameSite = "Lax"
	SameSiteNone   SameSite = "None"
)

// Cookie is a browser cookie as read from and written back to the session
type Cookie struct {
	Name     string   `json:"name"`
	Value    string   `json:"value"`
	Domain   string   `json:"domain"`
	Path     string   `json:"path"`
	Secure   bool     `json:"secure"`
	HTTPOnly bool     `json:"httpOnly,omitempty"`
	SameSite SameSite `json:"sameSite,omitempty"`
	// Expiry is seconds since epoch; zero means a session cookie.
	Expiry float64 `json:"expiry,omitempty"`
}

// StorageEntry is one page-local storage slot
type StorageEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
