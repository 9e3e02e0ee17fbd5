package types

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Money is validated through its float value so that tags like gt=0 apply to it.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if m, ok := field.Interface().(Money); ok {
			return m.Float64()
		}

		return nil
	}, Money{})

	return v
}

// BuyOrder is a request to buy Quantity shares of Symbol at the caller supplied Price.
type BuyOrder struct {
	AccountID string `yaml:"account_id" json:"account_id"`
	Symbol    string `yaml:"symbol" json:"symbol" validate:"required"`
	// Name is stored on the holding and the transaction record
	Name     string `yaml:"name" json:"name"`
	Quantity int64  `yaml:"quantity" json:"quantity" validate:"required"`
	Price    Money  `yaml:"price" json:"price" validate:"required,gt=0"`
}

// SellOrder is a request to sell Quantity shares of Symbol at Price.
type SellOrder struct {
	AccountID string `yaml:"account_id" json:"account_id"`
	Symbol    string `yaml:"symbol" json:"symbol" validate:"required"`
	Quantity  int64  `yaml:"quantity" json:"quantity" validate:"required"`
	Price     Money  `yaml:"price" json:"price" validate:"required,gt=0"`
}

// Total is Price × Quantity.
func (o BuyOrder) Total() Money { return o.Price.Mul(o.Quantity) }

// Total is Price × Quantity.
func (o SellOrder) Total() Money { return o.Price.Mul(o.Quantity) }

// Validate validates the BuyOrder struct.
func (o *BuyOrder) Validate() error {
	return validateOrder(o, o.Quantity)
}

// Validate validates the SellOrder struct.
func (o *SellOrder) Validate() error {
	return validateOrder(o, o.Quantity)
}

// validateOrder reports missing fields as ErrCodeInvalidOrder. A quantity that is present
// but not positive is ErrCodeInvalidQuantity.
func validateOrder(order any, quantity int64) error {
	if err := validate.Struct(order); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
		}

		// required on an int only rejects zero, so a negative quantity gets here clean
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fmt.Sprintf("%s(%s)", strings.ToLower(fe.Field()), fe.Tag()))
		}

		return errors.Wrap(errors.ErrCodeInvalidOrder,
			"invalid order: "+strings.Join(fields, ", "), err)
	}

	if quantity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidQuantity, "quantity must be at least 1, got %d", quantity)
	}

	return nil
}
