package call

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mossy-p/voice-signaling/internal/models"
)

var lookupClient = &http.Client{Timeout: 10 * time.Second}

// LookupRoom asks the server who is on the other end of roomID and which
// role this user plays. A 404 or 409 maps to ErrAuthorizationDenied since
// neither relationship permits a call.
func LookupRoom(ctx context.Context, baseURL, cookieName, credential, roomID string) (models.RoomInfo, error) {
	endpoint := strings.TrimRight(baseURL, "/") + "/api/rooms/" + url.PathEscape(roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.RoomInfo{}, err
	}
	req.AddCookie(&http.Cookie{Name: cookieName, Value: credential})

	resp, err := lookupClient.Do(req)
	if err != nil {
		return models.RoomInfo{}, fmt.Errorf("%w: %v", ErrSignaling, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return models.RoomInfo{}, ErrAuthenticationRequired
	case http.StatusNotFound, http.StatusConflict:
		return models.RoomInfo{}, ErrAuthorizationDenied
	default:
		return models.RoomInfo{}, fmt.Errorf("%w: room lookup returned %s", ErrSignaling, resp.Status)
	}

	var info models.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return models.RoomInfo{}, fmt.Errorf("decode room info: %w", err)
	}
	return info, nil
}
