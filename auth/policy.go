package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/nbutton23/zxcvbn-go"
)

const specialChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_{|}~`"

// ErrWeakPassword wraps every password policy failure.
var ErrWeakPassword = errors.New("password does not meet policy")

// ValidateOptions tunes ValidatePassword.
type ValidateOptions struct {
	// MinLength is counted in runes.
	MinLength int
	// MinScore is the lowest accepted zxcvbn score, 0 to 4.
	MinScore int
	// RequireClasses demands an uppercase letter, a digit and a special character.
	RequireClasses bool
	// CheckBreached queries the HIBP range API. A failed lookup is logged and
	// does not reject the password.
	CheckBreached bool
	// UserInputs are penalised by zxcvbn, e.g. the wallet name.
	UserInputs []string
	// Breach overrides the HIBP client used when CheckBreached is set.
	Breach *HIBPClient
}

// DefaultValidateOptions is the policy applied to new coldkey passwords.
func DefaultValidateOptions() ValidateOptions {
	return ValidateOptions{
		MinLength: 8,
		MinScore:  2,
	}
}

// ValidatePassword applies the password policy in opts to pw.
func ValidatePassword(ctx context.Context, pw []byte, opts ValidateOptions) error {
	s := string(pw)

	if n := len([]rune(s)); n < opts.MinLength {
		return fmt.Errorf("%w: must be at least %d characters long", ErrWeakPassword, opts.MinLength)
	}

	if opts.RequireClasses {
		if !hasUpper(s) {
			return fmt.Errorf("%w: must include an uppercase letter", ErrWeakPassword)
		}
		if !hasDigit(s) {
			return fmt.Errorf("%w: must include a digit", ErrWeakPassword)
		}
		if !hasSpecial(s) {
			return fmt.Errorf("%w: must include a special character", ErrWeakPassword)
		}
	}

	if opts.MinScore > 0 {
		score := zxcvbn.PasswordStrength(s, opts.UserInputs).Score
		if score < opts.MinScore {
			return fmt.Errorf("%w: strength score %d/4, need %d; try a longer or less predictable password",
				ErrWeakPassword, score, opts.MinScore)
		}
	}

	if opts.CheckBreached {
		client := opts.Breach
		if client == nil {
			client = DefaultHIBPClient
		}
		res, err := client.Check(ctx, pw)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("breach check unavailable; skipping")
		case res.Found:
			return fmt.Errorf("%w: seen %d times in known breaches", ErrWeakPassword, res.Count)
		}
	}

	return nil
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func hasSpecial(s string) bool {
	for _, r := range s {
		if strings.ContainsRune(specialChars, r) {
			return true
		}
	}
	return false
}
