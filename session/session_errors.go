package session

import "errors"

var (
	ThrottledLoginErr   = errors.New("too many login attempts, try again later")
	ProfileFetchErr     = errors.New("profile fetch failed")
	NotAuthenticatedErr = errors.New("not authenticated")
)
