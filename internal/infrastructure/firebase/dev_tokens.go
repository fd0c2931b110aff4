package firebase

import (
	"context"
	"strings"

	"lapakchat/pkg/errors"
)

// DevTokenVerifier accepts tokens of the form "dev:<uid>". Wired only when
// the service runs without a Firebase project (local development); never in
// production.
type DevTokenVerifier struct{}

func NewDevTokenVerifier() *DevTokenVerifier {
	return &DevTokenVerifier{}
}

func (v *DevTokenVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	uid, ok := strings.CutPrefix(token, "dev:")
	if !ok || uid == "" {
		return "", errors.Unauthorized("Invalid dev token", nil)
	}
	return uid, nil
}
