package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggle(t *testing.T) {
	tests := []struct {
		name string
		in   Status
		want Status
	}{
		{name: "pending to completed", in: StatusPending, want: StatusCompleted},
		{name: "completed to pending", in: StatusCompleted, want: StatusPending},
		{name: "unset behaves as pending", in: "", want: StatusCompleted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Toggle(tc.in))
		})
	}

	t.Run("involution", func(t *testing.T) {
		for _, s := range []Status{StatusPending, StatusCompleted} {
			assert.Equal(t, s, Toggle(Toggle(s)))
		}
	})
}

func TestInput_WithID(t *testing.T) {
	in := Input{
		CustomerName:  "Ivan",
		Company:       "Acme",
		ContainerSize: "40ft New",
		Quantity:      5,
		DeliveryDate:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	o := in.WithID("42")
	assert.Equal(t, "42", o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, in, Input{
		CustomerName:  o.CustomerName,
		Company:       o.Company,
		ContainerSize: o.ContainerSize,
		Quantity:      o.Quantity,
		DeliveryDate:  o.DeliveryDate,
	})

	in.Status = StatusCompleted
	assert.Equal(t, StatusCompleted, in.WithID("43").Status)
}

func TestParseContainerSize(t *testing.T) {
	tests := []struct {
		label ContainerSize
		want  ContainerSpec
	}{
		{"20ft New", ContainerSpec{Label: "20ft New", Size: "20ft", Condition: "New"}},
		{"40ft Used (Cargo)", ContainerSpec{Label: "40ft Used (Cargo)", Size: "40ft", Condition: "Used", Source: "Cargo"}},
		{"40ft HC Used (WWT)", ContainerSpec{Label: "40ft HC Used (WWT)", Size: "40ft HC", Condition: "Used", Source: "WWT"}},
		{"Reefer", ContainerSpec{Label: "Reefer", Size: "Reefer"}},
	}

	for _, tc := range tests {
		t.Run(string(tc.label), func(t *testing.T) {
			assert.Equal(t, tc.want, ParseContainerSize(tc.label))
		})
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog(nil)
	assert.Equal(t, DefaultContainerSizes, c.Sizes())
	assert.True(t, c.Contains("40ft HC New"))
	assert.False(t, c.Contains("45ft New"))

	custom := NewCatalog([]ContainerSize{" 10ft New ", "10ft New", "", "20ft Used (WWT)"})
	assert.Equal(t, []ContainerSize{"10ft New", "20ft Used (WWT)"}, custom.Sizes())
	assert.Len(t, custom.Specs(), 2)
}

func validInput() Input {
	return Input{
		CustomerName:  "Ivan Petrov",
		Company:       "Acme",
		ContainerSize: "40ft New",
		Quantity:      5,
		DeliveryDate:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestValidator_ValidateInput(t *testing.T) {
	v := NewValidator(NewCatalog(nil))

	tests := []struct {
		name   string
		mutate func(in *Input)
		fields []string
	}{
		{name: "valid", mutate: func(in *Input) {}},
		{name: "valid completed", mutate: func(in *Input) { in.Status = StatusCompleted }},
		{name: "short customer name", mutate: func(in *Input) { in.CustomerName = "I" }, fields: []string{"customerName"}},
		{name: "two runes is enough", mutate: func(in *Input) { in.Company = "Яш" }},
		{name: "missing company", mutate: func(in *Input) { in.Company = "" }, fields: []string{"company"}},
		{name: "unknown container", mutate: func(in *Input) { in.ContainerSize = "45ft New" }, fields: []string{"containerSize"}},
		{name: "missing container", mutate: func(in *Input) { in.ContainerSize = "" }, fields: []string{"containerSize"}},
		{name: "zero quantity", mutate: func(in *Input) { in.Quantity = 0 }, fields: []string{"quantity"}},
		{name: "missing delivery date", mutate: func(in *Input) { in.DeliveryDate = time.Time{} }, fields: []string{"deliveryDate"}},
		{name: "bad status", mutate: func(in *Input) { in.Status = "shipped" }, fields: []string{"status"}},
		{
			name: "several fields",
			mutate: func(in *Input) {
				in.CustomerName = ""
				in.Quantity = -1
			},
			fields: []string{"customerName", "quantity"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)

			err := v.ValidateInput(in)
			if len(tc.fields) == 0 {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, IsValidation(err))

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			for _, f := range tc.fields {
				assert.Contains(t, ve.Fields, f)
			}
			assert.Len(t, ve.Fields, len(tc.fields))
		})
	}
}

func TestValidator_ValidateOrder(t *testing.T) {
	v := NewValidator(NewCatalog([]ContainerSize{"20ft New"}))

	o := validInput().WithID("1")
	o.ContainerSize = "20ft New"
	assert.NoError(t, v.ValidateOrder(o))

	o.ID = ""
	err := v.ValidateOrder(o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id: is required")

	o.ID = "1"
	o.ContainerSize = "40ft New"
	assert.True(t, IsValidation(v.ValidateOrder(o)))
}

func TestPersistence(t *testing.T) {
	cause := errors.New("disk full")
	err := Persistence("save orders", cause)

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsValidation(err))
	assert.Equal(t, "failed to save orders: persistence failure: disk full", err.Error())
}
