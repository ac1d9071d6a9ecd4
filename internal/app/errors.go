package app

import "errors"

// ErrInvalidCredentials covers unknown usernames and wrong passwords
// without distinguishing the two.
var ErrInvalidCredentials = errors.New("invalid credentials")
