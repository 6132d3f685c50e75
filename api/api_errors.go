package api

import "errors"

var (
	InvalidCredentialsErr = errors.New("invalid credentials")
	UnauthorizedErr       = errors.New("unauthorized")
	ServerErr             = errors.New("server error")
)
