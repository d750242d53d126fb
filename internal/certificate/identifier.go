package certificate

import (
	"fmt"
	"strings"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
)

// StandardUID is PREFIX-CERT-{event display id}-{student display id}.
func StandardUID(prefix, eventDisplayID, studentDisplayID string) (string, error) {
	p, e, s, err := normalizeParts(prefix, eventDisplayID, studentDisplayID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-CERT-%s-%s", p, e, s), nil
}

// WinnerUID is PREFIX-WINNER-{event display id}-{student display id}-POS{position}.
func WinnerUID(prefix, eventDisplayID, studentDisplayID string, position int) (string, error) {
	if position < 1 {
		return "", apperr.Validation("winner position must be 1 or greater")
	}
	p, e, s, err := normalizeParts(prefix, eventDisplayID, studentDisplayID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-WINNER-%s-%s-POS%d", p, e, s, position), nil
}

func normalizeParts(prefix, eventDisplayID, studentDisplayID string) (string, string, string, error) {
	prefix = strings.TrimSpace(prefix)
	eventDisplayID = strings.TrimSpace(eventDisplayID)
	studentDisplayID = strings.TrimSpace(studentDisplayID)

	switch {
	case prefix == "":
		return "", "", "", apperr.Validation("certificate id prefix is not configured")
	case eventDisplayID == "":
		return "", "", "", apperr.Validation("event display id is missing")
	case studentDisplayID == "":
		return "", "", "", apperr.Validation("student display id is missing")
	}
	for _, part := range []string{prefix, eventDisplayID, studentDisplayID} {
		if strings.ContainsAny(part, `/\ `) {
			return "", "", "", apperr.Validation("display id contains invalid characters: " + part)
		}
	}
	return prefix, eventDisplayID, studentDisplayID, nil
}

// PositionLabel returns the badge and default text for a podium position.
// Positions beyond the podium get no badge.
func PositionLabel(position int) (badge, text string) {
	switch position {
	case 1:
		return "GOLD", "1st Place"
	case 2:
		return "SILVER", "2nd Place"
	case 3:
		return "BRONZE", "3rd Place"
	default:
		return "", fmt.Sprintf("Position %d", position)
	}
}

// ArtifactKey is the storage key for a certificate's document with the given extension.
func ArtifactKey(uid, ext string) string {
	return "certificates/" + uid + "." + ext
}
