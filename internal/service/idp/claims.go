package idp

import (
	"github.com/tidwall/gjson"

	"github.com/dzerik/swa-emulator/internal/model"
)

// Claim types emitted for custom providers.
const (
	ClaimIssuer         = "iss"
	ClaimAuthorizedPart = "azp"
	ClaimAudience       = "aud"
	ClaimEmail          = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	ClaimName           = "name"
	ClaimPicture        = "picture"
	ClaimGivenName      = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/givenname"
	ClaimSurname        = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/surname"
	ClaimNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	ClaimEmailVerified  = "email_verified"
	githubClaimPrefix   = "urn:github:"
)

// MapPrincipal turns a provider user document into a principal carrying the
// two baseline roles.
func MapPrincipal(def Definition, creds Credentials, user gjson.Result) *model.ClientPrincipal {
	details := first(user, "login", "email")
	userID := user.Get("id").String()

	claims := []model.Claim{
		{Typ: ClaimIssuer, Val: def.issuer(creds)},
		{Typ: ClaimAuthorizedPart, Val: creds.ClientID},
		{Typ: ClaimAudience, Val: creds.ClientID},
	}
	add := func(typ, val string) {
		if val != "" {
			claims = append(claims, model.Claim{Typ: typ, Val: val})
		}
	}

	add(ClaimEmail, details)
	add(ClaimName, user.Get("name").String())
	add(ClaimPicture, picture(user))
	add(ClaimGivenName, first(user, "given_name", "first_name"))
	add(ClaimSurname, first(user, "family_name", "last_name"))
	add(ClaimNameIdentifier, userID)
	if v := user.Get("verified_email"); v.Exists() && v.Type != gjson.False && v.Type != gjson.Null {
		add(ClaimEmailVerified, v.String())
	}

	if def.Name == GitHub {
		user.ForEach(func(key, value gjson.Result) bool {
			claims = append(claims, model.Claim{Typ: githubClaimPrefix + key.String(), Val: value.String()})
			return true
		})
	}

	return &model.ClientPrincipal{
		IdentityProvider: def.Name,
		UserID:           userID,
		UserDetails:      details,
		UserRoles:        []string{model.RoleAuthenticated, model.RoleAnonymous},
		Claims:           claims,
	}
}

func first(user gjson.Result, paths ...string) string {
	for _, p := range paths {
		if s := user.Get(p).String(); s != "" {
			return s
		}
	}
	return ""
}

// picture reads a plain URL (google) or facebook's nested picture object.
func picture(user gjson.Result) string {
	p := user.Get("picture")
	if p.IsObject() {
		return p.Get("data.url").String()
	}
	return p.String()
}
