package domain

import (
	"encoding/json"
)

// User is the record persisted and served by the API.
// Email is optional and is omitted from both JSON and BSON when nil.
type User struct {
	ID       uint32  `json:"id" bson:"id"`
	Name     string  `json:"name" bson:"name"`
	Phone    string  `json:"phone" bson:"phone"`
	Email    *string `json:"email,omitempty" bson:"email,omitempty"`
	IsActive bool    `json:"isActive" bson:"isActive"`
}

// userWire mirrors User with pointer fields so absent keys can be told apart from zero values.
type userWire struct {
	ID       *uint32 `json:"id"`
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Email    *string `json:"email"`
	IsActive *bool   `json:"isActive"`
}

// UnmarshalJSON decodes a User and rejects payloads missing a required field.
func (u *User) UnmarshalJSON(data []byte) error {
	var wire userWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	switch {
	case wire.ID == nil:
		return &MissingFieldError{Field: "id"}
	case wire.Name == nil:
		return &MissingFieldError{Field: "name"}
	case wire.Phone == nil:
		return &MissingFieldError{Field: "phone"}
	case wire.IsActive == nil:
		return &MissingFieldError{Field: "isActive"}
	}

	*u = User{
		ID:       *wire.ID,
		Name:     *wire.Name,
		Phone:    *wire.Phone,
		Email:    wire.Email,
		IsActive: *wire.IsActive,
	}
	return nil
}

// StringPtr returns a pointer to s. Handy for building users with an email.
func StringPtr(s string) *string {
	return &s
}
