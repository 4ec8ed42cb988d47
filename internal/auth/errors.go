package auth

import "errors"

var (
	ErrUnauthorized   = errors.New("auth: unauthorized")
	ErrForbidden      = errors.New("auth: forbidden")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrPlantMismatch  = errors.New("auth: token issued for another plant")
	ErrMachineScope   = errors.New("auth: machine outside token scope")
	ErrUnknownGateway = errors.New("auth: unknown ingest gateway")
)
