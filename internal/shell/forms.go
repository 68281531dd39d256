package shell

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/weatherdesk/internal/model"
)

// SignInForm はサインインフォームの入力値。
type SignInForm struct {
	Email    string `validate:"nonblank"`
	Password string `validate:"nonblank"`
}

// SignUpForm はサインアップフォームの入力値。FullNameは任意。
type SignUpForm struct {
	Username string `validate:"nonblank"`
	FullName string
	Email    string `validate:"nonblank"`
	Password string `validate:"nonblank,min=6"`
}

// newValidator はフォーム検証用のvalidatorを生成する。
// nonblankは空白のみの文字列も未入力として扱う。
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validateSignIn はサインインフォームを検証し、画面表示用のエラーを返す。
func validateSignIn(v *validator.Validate, form SignInForm) error {
	if err := v.Struct(form); err != nil {
		return model.NewValidationError(model.MsgFillAllFields)
	}
	return nil
}

// validateSignUp はサインアップフォームを検証し、画面表示用のエラーを返す。
// 未入力の項目がある場合はパスワード長より先に報告する。
func validateSignUp(v *validator.Validate, form SignUpForm) error {
	err := v.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.NewValidationError(model.MsgFillRequired)
	}
	tooShort := false
	for _, fe := range verrs {
		switch fe.Tag() {
		case "nonblank":
			return model.NewValidationError(model.MsgFillRequired)
		case "min":
			tooShort = true
		}
	}
	if tooShort {
		return model.NewValidationError(model.MsgPasswordTooShort)
	}
	return model.NewValidationError(model.MsgFillRequired)
}
