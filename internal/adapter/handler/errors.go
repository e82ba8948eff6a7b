package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/storefront/internal/core/domain"
)

const codeInternal = "INTERNAL_SERVER_ERROR"

type ErrorResponse struct {
	Success   bool           `json:"success"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

var kindStatus = []struct {
	kind error
	http int
	grpc codes.Code
}{
	{domain.ErrNotFound, fiber.StatusNotFound, codes.NotFound},
	{domain.ErrForbidden, fiber.StatusForbidden, codes.PermissionDenied},
	{domain.ErrConflict, fiber.StatusConflict, codes.Aborted},
	{domain.ErrUnprocessable, fiber.StatusUnprocessableEntity, codes.FailedPrecondition},
	{domain.ErrValidation, fiber.StatusBadRequest, codes.InvalidArgument},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, codes.Unauthenticated},
}

// ErrorHandler renders every error returned by a route as an ErrorResponse.
// Errors that are not domain errors are logged and hidden behind a 500.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		resp := ErrorResponse{Timestamp: time.Now().UTC()}
		statusCode := fiber.StatusInternalServerError

		var derr *domain.Error
		var ferr *fiber.Error
		switch {
		case errors.As(err, &derr):
			for _, ks := range kindStatus {
				if errors.Is(derr, ks.kind) {
					statusCode = ks.http
					break
				}
			}
			resp.Code, resp.Message, resp.Detail = string(derr.Code), derr.Message, derr.Detail
		case errors.As(err, &ferr):
			statusCode = ferr.Code
			resp.Code, resp.Message = codeForStatus(ferr.Code), ferr.Message
		}
		if statusCode == fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			resp.Code, resp.Message, resp.Detail = codeInternal, "internal server error", nil
		}
		return c.Status(statusCode).JSON(resp)
	}
}

func codeForStatus(code int) string {
	switch code {
	case fiber.StatusNotFound:
		return "ROUTE_NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusBadRequest:
		return string(domain.CodeValidationFailed)
	}
	return codeInternal
}

// grpcError converts a service error into a gRPC status.
func grpcError(logger *zap.Logger, method string, err error) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		for _, ks := range kindStatus {
			if errors.Is(derr, ks.kind) {
				return status.Error(ks.grpc, derr.Error())
			}
		}
	}
	logger.Error("rpc failed", zap.String("method", method), zap.Error(err))
	return status.Error(codes.Internal, "internal server error")
}
