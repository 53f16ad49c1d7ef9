package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TokenClaim is the channel-scoped capability a client presents to the
// transport. The room core never validates these; it only issues them.
type TokenClaim struct {
	ClientID   string   `json:"clientId"`
	Channel    string   `json:"channel"`
	Capability []string `json:"capability"`
	Expires    int64    `json:"expires"`
}

// defaultCapability grants the full room channel surface.
var defaultCapability = []string{"publish", "subscribe", "presence"}

// TokenHandler issues ephemeral credentials scoped to one room channel.
type TokenHandler struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenHandler creates a TokenHandler signing with the given secret.
func NewTokenHandler(secret []byte, ttl time.Duration) *TokenHandler {
	return &TokenHandler{secret: secret, ttl: ttl}
}

// IssueToken handles token requests: a fresh client id and a signed,
// time-bounded claim over the room's channel.
func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req struct {
		RoomID string `json:"roomId" binding:"required"`
	}

	if err := c.BindJSON(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, "Invalid request format")
		return
	}

	claim := TokenClaim{
		ClientID:   "user-" + uuid.NewString()[:8],
		Channel:    "room:" + req.RoomID,
		Capability: defaultCapability,
		Expires:    time.Now().Add(h.ttl).UnixMilli(),
	}

	token, err := h.sign(claim)
	if err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not issue token")
		return
	}

	c.Header("Cache-Control", "no-store")
	standardResponse(c, http.StatusOK, "issued", gin.H{
		"token":      token,
		"clientId":   claim.ClientID,
		"channel":    claim.Channel,
		"capability": claim.Capability,
		"expires":    claim.Expires,
	}, "")
}

// sign encodes the claim and appends its HMAC-SHA256 tag.
func (h *TokenHandler) sign(claim TokenClaim) (string, error) {
	payload, err := json.Marshal(claim)
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)

	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(encoded))
	return encoded + "." + hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify decodes a token and checks its signature and expiry. The
// server itself never calls this on the command path; it exists for
// transport collaborators that terminate channels elsewhere.
func (h *TokenHandler) Verify(token string) (TokenClaim, bool) {
	encoded, tag, found := strings.Cut(token, ".")
	if !found {
		return TokenClaim{}, false
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(encoded))
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(tag), []byte(want)) {
		return TokenClaim{}, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return TokenClaim{}, false
	}
	var claim TokenClaim
	if json.Unmarshal(payload, &claim) != nil {
		return TokenClaim{}, false
	}
	if time.Now().UnixMilli() >= claim.Expires {
		return TokenClaim{}, false
	}
	return claim, true
}
