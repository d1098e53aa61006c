package serverutils

import (
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// ParseParticipantToken extracts a participant identity from an optional
// JWT. Realtime channels stay open to anonymous participants, so any parse
// failure just yields empty identity rather than an error.
func ParseParticipantToken(tokenStr string) (participantID, participantName string) {
	if tokenStr == "" {
		return "", ""
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return "", ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ""
	}
	if v, ok := claims["participant_id"].(string); ok {
		participantID = v
	}
	if v, ok := claims["name"].(string); ok {
		participantName = v
	}
	return participantID, participantName
}
