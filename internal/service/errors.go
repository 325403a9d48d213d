package service

import (
	"errors"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/auth"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrForbidden          = errors.New("forbidden")
	ErrUnknownFunction    = errors.New("unknown function")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid verification code")

	ErrValidation      = models.ErrValidation
	ErrUnknownEntity   = store.ErrUnknownEntity
	ErrUnauthenticated = auth.ErrUnauthenticated
)
