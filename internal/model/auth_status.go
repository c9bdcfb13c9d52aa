package model

// AuthStatus classifies how a request relates to the auth subsystem.
// Values mirror the platform's numbering.
type AuthStatus int

const (
	NoAuth AuthStatus = iota
	HostNameAuthLogin
	HostNameAuthComplete
	HostNameAuthLogout
	IdentityAuthLogin
	IdentityRedirect
	IdentityAuthLoginDone
	IdentityAuthConsentGranted
	HostNameAuthAcceptInvitation
	AuthMe
	HostNameAuthLogoutComplete
	IdentityRedirectLogout
	IdentityAuthLogoutComplete
	IdentityAuthPurgeBegin
	IdentityAuthPurgeWarning
	IdentityAuthPurgeComplete
	HostNameAuthPurge
	HostNameAuthLoginCallback
	IdentityAuthLoginCallback
	IdentityAuthLogout
)

var authStatusNames = [...]string{
	"NoAuth",
	"HostNameAuthLogin",
	"HostNameAuthComplete",
	"HostNameAuthLogout",
	"IdentityAuthLogin",
	"IdentityRedirect",
	"IdentityAuthLoginDone",
	"IdentityAuthConsentGranted",
	"HostNameAuthAcceptInvitation",
	"AuthMe",
	"HostNameAuthLogoutComplete",
	"IdentityRedirectLogout",
	"IdentityAuthLogoutComplete",
	"IdentityAuthPurgeBegin",
	"IdentityAuthPurgeWarning",
	"IdentityAuthPurgeComplete",
	"HostNameAuthPurge",
	"HostNameAuthLoginCallback",
	"IdentityAuthLoginCallback",
	"IdentityAuthLogout",
}

func (s AuthStatus) String() string {
	if s >= 0 && int(s) < len(authStatusNames) {
		return authStatusNames[s]
	}
	return "Unknown"
}

// AllowsRouteMatching reports whether route rules may be evaluated for a
// request in this status. Only plain requests and rewrites into a login
// endpoint take part in route matching.
func (s AuthStatus) AllowsRouteMatching() bool {
	return s == NoAuth || s == HostNameAuthLogin
}
