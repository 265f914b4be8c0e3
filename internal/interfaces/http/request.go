package http

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/Kardex-api/internal/application/dto"
)

// HeaderRequestID cabecera de correlación.
const (
	HeaderRequestID = "X-Request-ID"
	LocalRequestID  = "request_id"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RequestID propaga X-Request-ID o genera uno nuevo.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := strings.Clone(c.Get(HeaderRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(HeaderRequestID, rid)
		c.Locals(LocalRequestID, rid)
		return c.Next()
	}
}

// GetRequestID devuelve el ID de correlación de la petición.
func GetRequestID(c *fiber.Ctx) string { return localString(c, LocalRequestID) }

// RequestLogger escribe una línea por petición con método, ruta, estado y duración.
func RequestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		ev := log.Info()
		if status >= fiber.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", GetRequestID(c)).
			Msg("http request")
		return err
	}
}

// bindJSON decodifica el cuerpo y valida los tags `validate`. Si falla ya respondió 400 y
// devuelve ok=false.
func bindJSON(c *fiber.Ctx, out any) (ok bool, err error) {
	if err := c.BodyParser(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := validate.Struct(out); err != nil {
		details := map[string]any{}
		if verrs, isVal := err.(validator.ValidationErrors); isVal {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		return false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos", Details: details})
	}
	return true, nil
}

// param copia el parámetro de ruta (fasthttp reutiliza el buffer tras la petición).
func param(c *fiber.Ctx, name string) string {
	return strings.Clone(c.Params(name))
}

func query(c *fiber.Ctx, name string) string {
	return strings.Clone(c.Query(name))
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", 20)
	offset = c.QueryInt("offset", 0)
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
