package models

// AddressType distinguishes a billing address from a home address.
type AddressType string

const (
	AddressBilling AddressType = "billing"
	AddressHome    AddressType = "home"
)

// Address belongs to an account. Billing addresses are owned by exactly one
// payment card and removed with it.
type Address struct {
	ID        int64
	AccountID int64
	Street    string
	City      string
	State     string
	Country   string
	Zip       string
	Type      AddressType
}
