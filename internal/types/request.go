package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/weixin-spider/internal/crawlerr"
)

// MaxWaitSeconds bounds the per-request content wait.
const MaxWaitSeconds = 120

// RequestOptions is the options bag every tool operation accepts.
type RequestOptions struct {
	DownloadImages bool   `json:"download_images,omitempty"`
	CustomLabel    string `json:"custom_label,omitempty" validate:"max=200"`
	WaitSeconds    int    `json:"wait_seconds,omitempty" validate:"gte=0,lte=120"`
}

// ArticleRequest asks for one article.
type ArticleRequest struct {
	URL string `json:"url" validate:"required"`
	RequestOptions
}

// MultiArticleRequest asks for several articles. Size bounds depend on the
// operation and are checked by it.
type MultiArticleRequest struct {
	URLs []string `json:"urls" validate:"dive,required"`
	RequestOptions
}

// Validate validates the RequestOptions using the validator.
func (r *RequestOptions) Validate() error {
	return validateStruct(r)
}

// Validate validates the ArticleRequest using the validator.
func (r *ArticleRequest) Validate() error {
	return validateStruct(r)
}

// Validate validates the MultiArticleRequest using the validator.
func (r *MultiArticleRequest) Validate() error {
	return validateStruct(r)
}

func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// validateStruct runs the validator and reports the first violation as a ValidationError.
func validateStruct(v any) error {
	err := newValidator().Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return &crawlerr.ValidationError{
			Field:   fe.Field(),
			Message: describeViolation(fe),
		}
	}
	return &crawlerr.ValidationError{Message: err.Error()}
}

func describeViolation(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
