package common

// AuthorizationHeaderName is the HTTP header used to carry the bearer
// access token on authenticated requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix is the scheme prefix expected in the authorization header.
const BearerPrefix = "Bearer "
