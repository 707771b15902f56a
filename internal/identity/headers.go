package identity

import (
	"net/http"

	"github.com/farmconnect/marketplace/internal/domain"
)

// Identity headers are set by the gateway after it verified the caller's
// token. The marketplace trusts them as-is.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserName  = "X-User-Name"
	HeaderUserEmail = "X-User-Email"
)

func FromRequest(r *http.Request) domain.Identity {
	return domain.Identity{
		UserID: r.Header.Get(HeaderUserID),
		Name:   r.Header.Get(HeaderUserName),
		Email:  r.Header.Get(HeaderUserEmail),
	}
}

func Strip(h http.Header) {
	h.Del(HeaderUserID)
	h.Del(HeaderUserName)
	h.Del(HeaderUserEmail)
}

func Inject(h http.Header, id domain.Identity) {
	Strip(h)
	h.Set(HeaderUserID, id.UserID)
	h.Set(HeaderUserName, id.Name)
	if id.Email != "" {
		h.Set(HeaderUserEmail, id.Email)
	}
}
