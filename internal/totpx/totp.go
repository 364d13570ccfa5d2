// Package totpx wraps RFC 6238 time-based one-time passwords for the
// two-factor enrollment and login flows. It is stateless: callers supply
// the shared secret and the current time.
package totpx

import (
	"encoding/base32"
	"time"

	"github.com/dkurganov/passvault/internal/common"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Issuer is the name authenticator apps display next to the account label.
const Issuer = "PassVault"

const (
	period     = 30
	secretSize = 20 // 160 bits, RFC 4226 recommended minimum
)

// b32 is the unpadded base32 alphabet shared secrets are encoded with.
var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

var validateOpts = totp.ValidateOpts{
	Period:    period,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateSecret returns a fresh base32-encoded 160-bit shared secret.
func GenerateSecret() string {
	return b32.EncodeToString(common.GenerateRandByteArray(secretSize))
}

// ProvisioningURI builds the otpauth:// URL for the given secret and account
// label, consumable by an authenticator app. Rendering it as a QR image is
// up to the client.
func ProvisioningURI(secret, account string) (string, error) {
	raw, err := b32.DecodeString(secret)
	if err != nil {
		return "", err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      Issuer,
		AccountName: account,
		Secret:      raw,
		Period:      period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

// Verify reports whether code is valid for the secret at time now.
// Codes from the previous, current and next 30-second step are accepted
// (skew 1); nothing wider.
func Verify(secret, code string, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, now, validateOpts)
	return err == nil && ok
}

// GenerateCode computes the 6-digit code for the secret at time now.
// Used by tests and the interactive client; the server only verifies.
func GenerateCode(secret string, now time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, now, validateOpts)
}
