package checkout

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/fjod/bakery-storefront/internal/domain"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// notblank also rejects whitespace-only strings
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}

// ruleName reports notblank failures as required.
func ruleName(tag string) string {
	if tag == "notblank" {
		return "required"
	}
	return tag
}

// validateForm checks required shipping fields, the alternate address when
// selected, and the payment method. Terms are checked separately.
func (s *Service) validateForm(form *Form) error {
	verr := &ValidationError{}

	collect := func(prefix string, target any) {
		err := s.validate.Struct(target)
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return
		}
		for _, fe := range fieldErrs {
			verr.add(prefix+fe.Field(), ruleName(fe.Tag()))
		}
	}

	collect("", &form.Shipping)
	if form.Shipping.UseOtherAddress {
		if form.Shipping.OtherAddress == nil {
			verr.add("otherAddress", "required")
		} else {
			collect("otherAddress.", form.Shipping.OtherAddress)
		}
	}

	switch {
	case form.PaymentMethod == "":
		verr.add("paymentMethod", "required")
	case !form.PaymentMethod.IsValid():
		verr.add("paymentMethod", "oneof")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// deliveryAddress picks the alternate address when the form asks for it.
func deliveryAddress(info domain.CheckoutShippingInfo) (recipient, phone, street, province, district, ward string) {
	if info.UseOtherAddress && info.OtherAddress != nil {
		o := info.OtherAddress
		return o.FullName, o.Phone, o.Address, o.ProvinceCode, o.DistrictCode, o.WardCode
	}
	return info.FullName, info.Phone, info.Address, info.ProvinceCode, info.DistrictCode, info.WardCode
}
