package service

import "errors"

var (
	ErrInvalidUsernameFormat = errors.New("invalid username format")
	ErrNotWhitelisted        = errors.New("username not in winner list")
	ErrNoWvcAssigned         = errors.New("no wvc assigned")
	ErrWvcAlreadyUsed        = errors.New("wvc already used")
	ErrWvcInvalid            = errors.New("wvc does not match")
)
