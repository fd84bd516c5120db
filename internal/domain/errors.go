package domain

import "errors"

var (
	ErrAuthRequired       = errors.New("authentication required")
	ErrNotAuthenticated   = errors.New("session is not authenticated")
	ErrBackendUnreachable = errors.New("backend unreachable")
	ErrSecretNotFound     = errors.New("secret not found")
	ErrCharacterNotFound  = errors.New("character not found")
	ErrZoneImageNotFound  = errors.New("zone image not found")
	ErrUnknownActionType  = errors.New("unknown pending action type")
)
