package validate

import (
	"errors"
	"testing"
)

type checkoutPayload struct {
	TemplateID string `validate:"required,uuid"`
	Quantity   int    `validate:"required,min=1"`
	Email      string `validate:"omitempty,email"`
	UnitPrice  int64  `validate:"gte=0"`
}

func TestStructPassesValidPayload(t *testing.T) {
	val := New()

	err := val.Struct(checkoutPayload{
		TemplateID: "7e6cf167-02f3-4dc8-8ed7-f8c8cbd1f52e",
		Quantity:   2,
		Email:      "buyer@example.com",
		UnitPrice:  1000,
	})
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
}

func TestStructReportsFieldLevelMessages(t *testing.T) {
	val := New()

	err := val.Struct(checkoutPayload{
		TemplateID: "not-a-uuid",
		Quantity:   0,
		Email:      "nope",
		UnitPrice:  -5,
	})
	if err == nil {
		t.Fatal("expected validation error")
	}

	var fieldErrs FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if len(fieldErrs) != 4 {
		t.Fatalf("expected 4 field errors, got %d: %v", len(fieldErrs), fieldErrs)
	}

	fields := map[string]string{}
	for _, fe := range fieldErrs {
		fields[fe.Field] = fe.Message
	}
	if fields["templateid"] != "must be a valid id" {
		t.Fatalf("unexpected template id message: %q", fields["templateid"])
	}
	if fields["quantity"] != "is required" {
		t.Fatalf("unexpected quantity message: %q", fields["quantity"])
	}
	if fields["unitprice"] != "must not be negative" {
		t.Fatalf("unexpected unit price message: %q", fields["unitprice"])
	}
}
