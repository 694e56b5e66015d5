package jwttoken

import (
	"carebridge/internal/platform/middleware"
)

func ToMiddlewareClaims(claims *AccessTokenClaims) *middleware.JWTClaims {
	return &middleware.JWTClaims{
		AccountID: claims.AccountID,
		Email:     claims.Email,
	}
}

// JWTServiceAdapter bridges JWTService to the middleware.JWTValidator
// interface without the middleware depending on this package.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
