// Package ids builds the human-readable identifiers used on requirements,
// negotiations, payments and uploaded files.
package ids

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"time"
)

// RequirementID returns YYYYMMDD + "REQ" + 3-digit milliseconds + 2-digit seconds.
func RequirementID(t time.Time) string {
	ms := t.Nanosecond() / int(time.Millisecond)
	return fmt.Sprintf("%sREQ%03d%02d", t.Format("20060102"), ms, t.Second())
}

// NegotiationID returns YYYYMMDD + "NEG" + six random digits.
func NegotiationID(t time.Time) (string, error) {
	digits, err := randomDigits(6)
	if err != nil {
		return "", err
	}
	return t.Format("20060102") + "NEG" + digits, nil
}

// PaymentReference is used when a client saves a payment without a gateway payment id.
func PaymentReference(t time.Time) (string, error) {
	digits, err := randomDigits(8)
	if err != nil {
		return "", err
	}
	return t.Format("20060102") + "PAY" + digits, nil
}

// UploadName returns "<unix-ms>-<6 digits><ext>"; ext is lower-cased.
func UploadName(t time.Time, ext string) (string, error) {
	digits, err := randomDigits(6)
	if err != nil {
		return "", err
	}
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%d-%s%s", t.UnixMilli(), digits, ext), nil
}

// UploadNameFor keeps the extension of an uploaded file name.
func UploadNameFor(t time.Time, original string) (string, error) {
	return UploadName(t, filepath.Ext(original))
}

// ProductID formats a catalog sequence number.
func ProductID(seq int64) string {
	return fmt.Sprintf("PID%06d", seq)
}

func randomDigits(n int) (string, error) {
	ten := big.NewInt(10)
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate digits: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
