package config

const (
	HCType        = "Content-Type"
	HETag         = "ETag"
	HIfNoneMatch  = "If-None-Match"
	HCacheControl = "Cache-Control"

	CTypeJSON = "application/json"
	CTypeHTML = "text/html"
	CTypeSSE  = "text/event-stream"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
	HTTPErrDraftNotFound    = "Draft not found"
	HTTPErrInvalidDraftID   = "Invalid draft id"
)

const (
	CookieDraftId = "draft-id"
)
