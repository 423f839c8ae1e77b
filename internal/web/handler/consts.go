package handler

const (
	// APIPrefix is the root of the public JSON API.
	APIPrefix = "/api/v1"

	// InternalPrefix is the root of the service-token guarded lifecycle API.
	InternalPrefix = APIPrefix + "/internal"

	// RouterRootPath is the root path inside a route group.
	RouterRootPath = "/"

	// Me may replace a user id in a path and stands for the caller.
	Me = "@me"

	// ErrNilACEFatalLogMsg is used if app or cfg or engine var pointer is nil.
	ErrNilACEFatalLogMsg = "app, cfg or engine is nil"
)
