package model

// AuthContext is the short-lived state kept in the context cookie between
// login initiation and the provider callback.
type AuthContext struct {
	AuthNonce            string `json:"authNonce"`
	PostLoginRedirectURI string `json:"postLoginRedirectUri,omitempty"`
}
