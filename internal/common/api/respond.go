package api

import (
	"errors"

	"go-workflow/internal/common/errs"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RespondError maps the service error taxonomy onto HTTP responses.
// Anything outside the taxonomy is logged and rendered as a bare 500.
func RespondError(ctx *fiber.Ctx, log *zap.Logger, err error) error {
	var (
		validation *errs.ValidationError
		forbidden  *errs.ForbiddenError
		notFound   *errs.NotFoundError
		condition  *errs.ConditionNotMetError
		config     *errs.ConfigError
		violation  *errs.InvariantViolation
	)

	switch {
	case errors.As(err, &validation):
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validation.Code, "message": validation.Message})
	case errors.As(err, &forbidden):
		body := fiber.Map{"error": "forbidden", "needed_roles": nonNil(forbidden.NeededRoles)}
		if forbidden.Reason != "" {
			body["message"] = forbidden.Reason
		}
		if len(forbidden.Fields) > 0 {
			body["fields"] = forbidden.Fields
		}
		return ctx.Status(fiber.StatusForbidden).JSON(body)
	case errors.As(err, &notFound):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": notFound.Error()})
	case errors.As(err, &condition):
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "condition_not_met", "transition_id": condition.TransitionID})
	case errors.As(err, &config):
		log.Error("template misconfigured", zap.String("template", config.Template), zap.Error(err))
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "config_error", "message": config.Message})
	case errors.As(err, &violation):
		log.Error("invariant violation reached the API boundary",
			zap.String("case_id", violation.CaseID), zap.String("state", violation.State), zap.Error(err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
	}

	log.Error("request failed", zap.String("path", ctx.Path()), zap.Error(err))
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
