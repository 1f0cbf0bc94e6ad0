package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/geo"
)

// RegisterValidators adds the lat and lng binding tags to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	if err := v.RegisterValidation("lat", func(fl validator.FieldLevel) bool {
		return geo.ValidCoordinate(fl.Field().Float(), 0)
	}); err != nil {
		return err
	}
	return v.RegisterValidation("lng", func(fl validator.FieldLevel) bool {
		return geo.ValidCoordinate(0, fl.Field().Float())
	})
}

func respondError(c *gin.Context, log logrus.FieldLogger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	entry := log.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
		"status": status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	c.JSON(status, gin.H{"error": gin.H{
		"category": kind,
		"message":  apperr.PublicMessage(err),
	}})
}

// respondBindError reports a body that failed to decode or validate.
func respondBindError(c *gin.Context, log logrus.FieldLogger, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		respondError(c, log, apperr.Validation(strings.Join(msgs, "; ")))
		return
	}
	respondError(c, log, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "lat":
		return "latitude must be within [-90, 90]"
	case "lng":
		return "longitude must be within [-180, 180]"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid " + name)
	}
	return id, nil
}
