// Package security keeps credentials out of logs and error output.
package security

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

const mask = "****"

// minSecretLen avoids masking short values that would match ordinary text.
const minSecretLen = 6

// botTokenPattern matches Telegram bot tokens: numeric id, colon, 35 chars.
var botTokenPattern = regexp.MustCompile(`\d{6,12}:[A-Za-z0-9_-]{30,}`)

// Mask shows the first four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return mask
	}
	return secret[:4] + mask
}

// Redact replaces every occurrence of the given secrets, and anything that
// looks like a bot token, with a mask.
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if len(secret) < minSecretLen {
			continue
		}
		s = strings.ReplaceAll(s, secret, mask)
		if escaped := url.PathEscape(secret); escaped != secret {
			s = strings.ReplaceAll(s, escaped, mask)
		}
	}
	return botTokenPattern.ReplaceAllString(s, mask)
}

// RedactDSN hides the password of a URL-style database DSN, and of a
// MySQL user:password@tcp(...) DSN.
func RedactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), mask)
			return strings.Replace(u.String(), url.QueryEscape(mask), mask, 1)
		}
		return dsn
	}
	at := strings.LastIndex(dsn, "@")
	colon := strings.Index(dsn, ":")
	if at > 0 && colon > 0 && colon < at {
		return dsn[:colon+1] + mask + dsn[at:]
	}
	return dsn
}

// redactedError presents a redacted message while keeping the chain for
// errors.Is and errors.As.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// RedactError returns err with the secrets removed from its message. The
// url.Error URL is rewritten in place so unwrapping does not reveal it.
func RedactError(err error, secrets ...string) error {
	if err == nil {
		return nil
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = Redact(uerr.URL, secrets...)
	}
	msg := err.Error()
	redacted := Redact(msg, secrets...)
	if redacted == msg {
		return err
	}
	return &redactedError{msg: redacted, err: err}
}
