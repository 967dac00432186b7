package middlewares

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "token"

const (
	ctxUserIDKey   = "auth.userID"
	ctxUsernameKey = "auth.username"
	ctxEmailKey    = "auth.email"
	ctxJTIKey      = "auth.jti"
	CtxRequestID   = "request_id"
)
