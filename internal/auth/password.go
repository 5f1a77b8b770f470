package auth

import (
	"crypto/md5"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/gravitational/trace"
	"golang.org/x/crypto/bcrypt"
)

// Supported password hash methods. Legacy accounts may still carry md5 or
// sha512 hashes; new and rehashed passwords use the application default.
const (
	MethodPlain  = "plain"
	MethodMD5    = "md5"
	MethodSHA512 = "sha512"
	MethodBcrypt = "bcrypt"
)

// HashPassword hashes a plaintext password with the given method.
func HashPassword(method, password string) (string, error) {
	switch method {
	case MethodPlain:
		return password, nil
	case MethodMD5:
		sum := md5.Sum([]byte(password))
		return hex.EncodeToString(sum[:]), nil
	case MethodSHA512:
		sum := sha512.Sum512([]byte(password))
		return hex.EncodeToString(sum[:]), nil
	case MethodBcrypt:
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("failed to hash password: %w", err)
		}
		return string(hash), nil
	default:
		return "", trace.BadParameter("unknown hash method %q", method)
	}
}

// VerifyPassword checks the supplied credential against a stored hash. When
// suppliedHashed is true the credential was pre-hashed by the client and is
// compared byte for byte. Empty credentials never verify.
func VerifyPassword(method, storedHash, supplied string, suppliedHashed bool) bool {
	if supplied == "" || storedHash == "" {
		return false
	}
	if suppliedHashed {
		return subtle.ConstantTimeCompare([]byte(storedHash), []byte(supplied)) == 1
	}
	if method == MethodBcrypt {
		return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(supplied)) == nil
	}
	hash, err := HashPassword(method, supplied)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(hash)) == 1
}

// NeedsRehash reports whether a stored credential must be rehashed with the
// application default method. Rehashing needs the plaintext, so a pre-hashed
// credential never triggers it.
func NeedsRehash(storedMethod, defaultMethod string, suppliedHashed bool) bool {
	return storedMethod != defaultMethod && !suppliedHashed
}
