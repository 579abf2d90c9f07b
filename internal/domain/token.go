// Package domain contains the entities of the signaling core, without logic
// beyond construction and encoding.
package domain

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const roomIDBytes = 16

// NewRoomID returns a fresh random room id. Uniqueness is the store's job;
// callers retry on the (negligible but real) collision.
func NewRoomID() (string, error) {
	buf := make([]byte, roomIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate room id: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

// MintToken derives the seat token for a room/seat pair. Tokens are
// self-describing: base64("<roomID>#<seat>") without padding.
func MintToken(roomID string, seat int) string {
	return base64.RawStdEncoding.EncodeToString([]byte(roomID + "#" + strconv.Itoa(seat)))
}

// MintTokens pre-generates one unclaimed token per seat.
func MintTokens(roomID string, seats int) map[string]string {
	tokens := make(map[string]string, seats)
	for i := 0; i < seats; i++ {
		t := MintToken(roomID, i)
		tokens[t] = t
	}
	return tokens
}

// DecodeToken recovers the room id and seat index a token encodes.
func DecodeToken(token string) (roomID string, seat int, err error) {
	raw, err := base64.RawStdEncoding.DecodeString(token)
	if err != nil {
		return "", 0, fmt.Errorf("%w: token is not base64", ErrInvalidInput)
	}
	i := strings.LastIndexByte(string(raw), '#')
	if i <= 0 || i == len(raw)-1 {
		return "", 0, fmt.Errorf("%w: malformed token", ErrInvalidInput)
	}
	seat, err = strconv.Atoi(string(raw[i+1:]))
	if err != nil || seat < 0 {
		return "", 0, fmt.Errorf("%w: malformed seat index", ErrInvalidInput)
	}
	return string(raw[:i]), seat, nil
}
