package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/aimkt/marketing-api/internal/model"
)

// RegisterValidators configures gin's binding validator: error messages name
// fields by their json tag, and the `channel` tag accepts known dispatch
// channels.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("channel", func(fl validator.FieldLevel) bool {
		_, err := model.ParseChannel(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
}
