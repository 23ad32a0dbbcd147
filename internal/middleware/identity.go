package middleware

// identity.go holds helpers that read the authenticated user back out of
// the Echo context.  Handlers and the rate limiter share them.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// UserID returns the authenticated user id set by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
    v, ok := c.Get(CtxUserID).(uint64)
    return v, ok && v > 0
}

// userKey is the user part of rate limit keys; "guest" when anonymous.
func userKey(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "guest"
}

// subjectID accepts the sub claim as a decimal string or a JSON number.
func subjectID(v interface{}) (uint64, bool) {
    switch t := v.(type) {
    case string:
        n, err := strconv.ParseUint(t, 10, 64)
        return n, err == nil && n > 0
    case float64:
        if t <= 0 || t != float64(uint64(t)) {
            return 0, false
        }
        return uint64(t), true
    }
    return 0, false
}
