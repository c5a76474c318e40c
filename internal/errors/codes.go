package errors

// Error codes returned in the "error" field of every error response.
// Format: CATEGORY_DETAIL. Clients map these to their own messages.

const (
	// ==================== Session (SESSION_) ====================
	SessionRequired          = "SESSION_REQUIRED"           // X-Session-ID header missing
	SessionInvalid           = "SESSION_INVALID"            // X-Session-ID is not a UUID
	SessionCredentialInvalid = "SESSION_CREDENTIAL_INVALID" // blank or malformed token
	SessionCredentialExpired = "SESSION_CREDENTIAL_EXPIRED" // token past its exp

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput      = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID         = "VALIDATION_INVALID_ID"
	ValidationInvalidQuantity   = "VALIDATION_INVALID_QUANTITY"
	ValidationInvalidAttributes = "VALIDATION_INVALID_ATTRIBUTES"

	// ==================== Resource (RESOURCE_) ====================
	ResourceNotFound = "RESOURCE_NOT_FOUND"
	ResourceConflict = "RESOURCE_CONFLICT"

	// ==================== Product (PRODUCT_) ====================
	ProductNotFound = "PRODUCT_NOT_FOUND"
	ProductInactive = "PRODUCT_INACTIVE"

	// ==================== Variant selection (VARIANT_) ====================
	VariantMissingRequired = "VARIANT_MISSING_REQUIRED" // required attribute not chosen
	VariantNoMatch         = "VARIANT_NO_MATCH"         // no variant has this combination
	VariantOutOfStock      = "VARIANT_OUT_OF_STOCK"

	// ==================== Cart (CART_) ====================
	CartLineNotFound      = "CART_LINE_NOT_FOUND"
	CartInsufficientStock = "CART_INSUFFICIENT_STOCK"

	// ==================== Upstream (UPSTREAM_) ====================
	UpstreamAuthExpired   = "UPSTREAM_AUTH_EXPIRED"
	UpstreamUnavailable   = "UPSTREAM_UNAVAILABLE"   // transient failures exhausted
	UpstreamBadPayload    = "UPSTREAM_BAD_PAYLOAD"   // response missing required fields
	UpstreamUnexpected    = "UPSTREAM_UNEXPECTED"    // other non-2xx
	UpstreamRequestFailed = "UPSTREAM_REQUEST_FAILED"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalTimeout       = "INTERNAL_TIMEOUT"
)
