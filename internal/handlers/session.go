package handlers

import (
	"net/http"

	"github.com/contextq/contextq/internal/common"
)

// sessionCookieName scopes documents and chat history to a browser session
const sessionCookieName = "contextq_session"

// SessionID returns the request's session id, minting one when absent.
// The cookie is set on the response when a new session starts.
func SessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	id := common.NewSessionID()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
