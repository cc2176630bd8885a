package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	notBlankTag  = "notblank"
	notBlankText = "this field cannot be blank"

	classCodeTag   = "classcode"
	classCodeText  = "invalid code"
	classCodeRegex = regexp.MustCompile("^[A-Z0-9]{4,16}$")
)

// NewTranslator returns the english translator used to render validation errors.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators registers the default translations and the app wide custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(notBlankTag, notBlankText, validate, translator)

	_ = validate.RegisterValidation(classCodeTag, classCodeValidation)
	RegisterCustomTranslation(classCodeTag, classCodeText, validate, translator)
}

// RegisterCustomTranslation registers error messages for custom validations.
// a validator.RegisterTranslationsFunc is required for registering the Translator,
// but it has already been registered as the default translation.
// so a noop func is passed to bypass this requirement.
func RegisterCustomTranslation(tag, text string, validate *validator.Validate, translator ut.Translator) {
	registerFn := func(ut.Translator) error { return nil }
	translationFn := func(ut.Translator, validator.FieldError) string { return text }
	_ = validate.RegisterTranslation(tag, translator, registerFn, translationFn)
}

// Custom Validators

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func classCodeValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return classCodeRegex.MatchString(str)
	}
	return false
}
