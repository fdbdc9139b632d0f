package domain

import "errors"

var (
	ErrEmptyMessage     = errors.New("message body is empty")
	ErrNameRequired     = errors.New("name is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrInvalidMode      = errors.New("invalid auth mode")
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrInvalidMessageID = errors.New("invalid message id")

	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrEmailTaken      = errors.New("email already registered")

	ErrBadCredentials = errors.New("bad credentials")
	ErrNoToken        = errors.New("authorization token required")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrForbidden      = errors.New("forbidden")
)
