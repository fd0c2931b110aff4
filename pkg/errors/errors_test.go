package errors

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedCode(t *testing.T) {
	err := NotFound("Chat", nil)
	assert.True(t, Is(err, "NOT_FOUND"))
	assert.False(t, Is(err, "FORBIDDEN"))
	assert.False(t, Is(fmt.Errorf("plain"), "NOT_FOUND"))

	wrapped := fmt.Errorf("fetch failed: %w", err)
	assert.True(t, Is(wrapped, "NOT_FOUND"))
}

func TestDecodeFailedCarriesCause(t *testing.T) {
	cause := fmt.Errorf("ciphertext unreadable")
	err := DecodeFailed("Stored message body could not be decrypted", cause)

	assert.Equal(t, "DECODE_FAILED", err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, Is(err, "DECODE_FAILED"))
}

func TestTooManyRequestsIncludesWait(t *testing.T) {
	err := TooManyRequests("You are sending messages too quickly", 42*time.Second)

	assert.Equal(t, "TOO_MANY_REQUESTS", err.Code)
	assert.Equal(t, http.StatusTooManyRequests, err.Status)
	assert.Contains(t, err.Message, "retry in 42s")
}

func TestBlockedIsForbiddenStatus(t *testing.T) {
	err := Blocked("You have been blocked in this chat")
	assert.Equal(t, "BLOCKED", err.Code)
	assert.Equal(t, http.StatusForbidden, err.Status)
}
