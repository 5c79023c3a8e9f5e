package constants

// Error codes used in API responses.
// These are the machine-readable codes returned in the "error" field.
const (
	// Common error codes
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternalError  = "INTERNAL_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeRateLimited    = "RATE_LIMITED"

	// Shortener-specific codes
	CodeInvalidURL    = "INVALID_URL"
	CodeInvalidCode   = "INVALID_CODE"
	CodeAlreadyExists = "CODE_EXISTS"
	CodeLinkNotFound  = "LINK_NOT_FOUND"

	// Success codes
	CodeLinkCreated = "LINK_CREATED"
	CodeLinkFound   = "LINK_FOUND"
	CodeLinksFound  = "LINKS_FOUND"
	CodeLinkDeleted = "LINK_DELETED"
)
