package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PlatformIOS is the platform identifier sent during registration.
const PlatformIOS = "ios"

// Registration errors.
var (
	ErrMissingAppID = errors.New("missing app id")
	ErrMissingToken = errors.New("missing device token")
)

// Registration is the REGISTER frame payload.
type Registration struct {
	// AppID is the numeric application identifier.
	AppID int `json:"app_id"`

	// Token is the device push token.
	Token string `json:"token"`

	// Platform identifies the client platform.
	Platform string `json:"platform"`
}

// Validate checks required registration fields.
func (r *Registration) Validate() error {
	if r.AppID == 0 {
		return ErrMissingAppID
	}
	if r.Token == "" {
		return ErrMissingToken
	}
	return nil
}

// EncodeRegistration builds a complete REGISTER frame.
func EncodeRegistration(reg *Registration) ([]byte, error) {
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registration: %w", err)
	}
	if reg.Platform == "" {
		reg.Platform = PlatformIOS
	}
	payload, err := json.Marshal(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode registration: %w", err)
	}
	return Encode(TagRegister, payload), nil
}

// DecodeRegistration parses a REGISTER frame payload.
func DecodeRegistration(payload []byte) (*Registration, error) {
	var reg Registration
	if err := json.Unmarshal(payload, &reg); err != nil {
		return nil, fmt.Errorf("failed to decode registration: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registration: %w", err)
	}
	return &reg, nil
}
