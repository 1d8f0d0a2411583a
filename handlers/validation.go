package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"classgroups-server-go/grouping"
)

var (
	strategyTag  = "strategy"
	strategyText = "{0} must be one of: allow-smaller, distribute"

	requiredTag  = "required"
	requiredText = "{0} is required"

	validatorOnce sync.Once
	translator    ut.Translator
)

// RegisterValidators hooks the custom tags and English messages into gin's validator.
func RegisterValidators() {
	validatorOnce.Do(func() {
		locale := en.New()
		translator, _ = ut.New(locale, locale).GetTranslator("en")

		validate, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = en_translations.RegisterDefaultTranslations(validate, translator)

		// Use JSON tag names for errors instead of Go struct names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = validate.RegisterValidation(strategyTag, strategyValidation)
		registerTranslation(validate, strategyTag, strategyText, false)
		registerTranslation(validate, requiredTag, requiredText, true)
	})
}

func registerTranslation(validate *validator.Validate, tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// strategyValidation accepts the known leftover strategies.
func strategyValidation(fl validator.FieldLevel) bool {
	_, err := grouping.ParseStrategy(fl.Field().String())
	return err == nil
}

// respondBindError writes a 400 with per-field messages when the binding
// failed validation, or the raw error otherwise.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && translator != nil {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Translate(translator)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
}
