package errors

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/TPAIN22/nubian-storefront/internal/app/service"
	"github.com/TPAIN22/nubian-storefront/internal/httpclient"
	"github.com/TPAIN22/nubian-storefront/internal/variant"
)

// ErrorInfo is what a failed request turns into on the wire
type ErrorInfo struct {
	Status  int    // HTTP status
	Code    string // code from codes.go
	Message string // human readable
	Reason  string // verdict reason for rejected selections
	Missing []string
}

// ParseError maps err to a status, code and message. Upstream details such
// as response bodies never reach the client. subject names what was being
// worked on ("product", "cart line") and only shapes messages.
func ParseError(err error, subject string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Status:  http.StatusInternalServerError,
			Code:    InternalServerError,
			Message: "Something went wrong",
		}
	}

	// 1. Selection rejected by the availability rules
	var purchaseErr *service.PurchaseError
	if errors.As(err, &purchaseErr) {
		return parseVerdict(purchaseErr.Verdict)
	}

	// 2. Service errors
	switch {
	case errors.Is(err, service.ErrInvalidProductID):
		return ErrorInfo{Status: http.StatusBadRequest, Code: ValidationInvalidID, Message: "Product id is required"}
	case errors.Is(err, service.ErrProductNotFound):
		return ErrorInfo{Status: http.StatusNotFound, Code: ProductNotFound, Message: "Product not found"}
	case errors.Is(err, service.ErrCartLineNotFound):
		return ErrorInfo{Status: http.StatusNotFound, Code: CartLineNotFound, Message: "The cart has no such line"}
	case errors.Is(err, service.ErrInvalidQuantity):
		return ErrorInfo{Status: http.StatusBadRequest, Code: ValidationInvalidQuantity, Message: "Quantity must be a positive number"}
	case errors.Is(err, service.ErrInsufficientStock):
		return ErrorInfo{Status: http.StatusConflict, Code: CartInsufficientStock, Message: "Not enough stock for the requested quantity"}
	case errors.Is(err, service.ErrInvalidCredential):
		if errors.Is(err, httpclient.ErrAuthExpired) {
			return ErrorInfo{Status: http.StatusUnauthorized, Code: SessionCredentialExpired, Message: "The credential has expired"}
		}
		return ErrorInfo{Status: http.StatusBadRequest, Code: SessionCredentialInvalid, Message: "The credential is not valid"}
	case errors.Is(err, variant.ErrUnsupportedAttributes):
		return ErrorInfo{Status: http.StatusBadRequest, Code: ValidationInvalidAttributes, Message: "Attributes must be an object or a list of name/value pairs"}
	}

	// 3. Upstream failures
	switch {
	case errors.Is(err, httpclient.ErrAuthExpired):
		return ErrorInfo{Status: http.StatusUnauthorized, Code: UpstreamAuthExpired, Message: "The session credential is no longer accepted. Please sign in again"}
	case errors.Is(err, httpclient.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrorInfo{Status: http.StatusNotFound, Code: ResourceNotFound, Message: notFoundMessage(subject)}
	case errors.Is(err, httpclient.ErrNetworkTransient):
		return ErrorInfo{Status: http.StatusServiceUnavailable, Code: UpstreamUnavailable, Message: "The catalog is temporarily unavailable. Please try again shortly"}
	case errors.Is(err, httpclient.ErrMalformedPayload):
		return ErrorInfo{Status: http.StatusBadGateway, Code: UpstreamBadPayload, Message: "The catalog returned an unreadable response"}
	case errors.Is(err, httpclient.ErrUnexpectedStatus):
		return parseStatusError(err)
	}

	// 4. Deadlines and cancellation
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorInfo{Status: http.StatusGatewayTimeout, Code: InternalTimeout, Message: "The request took too long"}
	}

	// 5. Database constraint violations, matched by driver message
	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "duplicate key") || strings.Contains(errLower, "unique constraint") {
		return ErrorInfo{Status: http.StatusConflict, Code: ResourceConflict, Message: "The " + subjectOr(subject, "item") + " changed concurrently. Please retry"}
	}
	if strings.Contains(errLower, "connection refused") || strings.Contains(errLower, "no such host") {
		return ErrorInfo{Status: http.StatusServiceUnavailable, Code: UpstreamRequestFailed, Message: "A backing service could not be reached"}
	}

	return ErrorInfo{
		Status:  http.StatusInternalServerError,
		Code:    InternalServerError,
		Message: defaultMessage(subject),
	}
}

func parseVerdict(v variant.Verdict) ErrorInfo {
	info := ErrorInfo{
		Status:  http.StatusUnprocessableEntity,
		Reason:  string(v.Reason),
		Missing: v.Missing,
	}
	switch v.Reason {
	case variant.ReasonMissingRequired:
		info.Code = VariantMissingRequired
		info.Message = "Please choose " + strings.Join(v.Missing, ", ")
	case variant.ReasonNoMatchingVariant:
		info.Code = VariantNoMatch
		info.Message = "This combination is not available"
	case variant.ReasonOutOfStock:
		info.Status = http.StatusConflict
		info.Code = VariantOutOfStock
		info.Message = "This selection is out of stock"
	case variant.ReasonInactiveProduct:
		info.Code = ProductInactive
		info.Message = "This product is no longer sold"
	default:
		info.Code = ValidationInvalidInput
		info.Message = "This selection cannot be purchased"
	}
	return info
}

// parseStatusError keeps client-side upstream rejections as 4xx and turns
// everything else into a gateway error
func parseStatusError(err error) ErrorInfo {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
		return ErrorInfo{Status: http.StatusBadRequest, Code: UpstreamUnexpected, Message: "The catalog rejected the request"}
	}
	return ErrorInfo{Status: http.StatusBadGateway, Code: UpstreamUnexpected, Message: "The catalog returned an unexpected response"}
}

func notFoundMessage(subject string) string {
	return "The requested " + subjectOr(subject, "resource") + " was not found"
}

func defaultMessage(subject string) string {
	if subject == "" {
		return "Something went wrong. Please try again later"
	}
	return "Could not process the " + subject + ". Please try again later"
}

func subjectOr(subject, fallback string) string {
	if strings.TrimSpace(subject) == "" {
		return fallback
	}
	return subject
}
