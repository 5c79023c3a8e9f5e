package constants

// Error messages used in API responses.
// These are the human-readable messages returned in the "message" field.
const (
	// Common messages
	MsgInvalidRequestBody = "Invalid request body"
	MsgInternalError      = "An internal error occurred"
	MsgUnauthorized       = "Unauthorized"
	MsgRateLimited        = "Too many requests"

	// Shortener-specific messages
	MsgInvalidURL    = "Invalid URL (must be http or https)"
	MsgInvalidCode   = "Invalid code (alphanumeric only)"
	MsgAlreadyExists = "Code already exists"
	MsgLinkNotFound  = "Link not found"
)
