// Package media mints time-bound credentials for the external media
// transport. TURN-REST compatible:
//
//	username   = <unix_expiry>:<room_key>:<participant_id>:<role>
//	credential = base64(hmac_sha1(shared_secret, username))
//
// The transport enforces expiry; this core only computes it. Issue is a
// pure function of its inputs plus the shared secret and is safe to call
// concurrently without synchronization.
package media

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/classline/classline/internal/core"
	"github.com/classline/classline/internal/domain"
)

const DefaultTTL = 24 * time.Hour

// Credential authorizes one participant on the media transport for one room.
type Credential struct {
	Username   string             `json:"username"`
	Password   string             `json:"password"`
	ExpiresAt  time.Time          `json:"expires_at"`
	ICEServers []webrtc.ICEServer `json:"ice_servers"`
}

type Issuer struct {
	secret   []byte
	ttl      time.Duration
	stunURLs []string
	turnURLs []string
	now      func() time.Time
}

// NewIssuer accepts an empty secret: the issuer then reports
// core.ErrConfiguration per call instead of failing construction, so the
// rest of the server keeps working without a media backend.
func NewIssuer(secret string, ttl time.Duration, stunURLs, turnURLs []string) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{
		secret:   []byte(secret),
		ttl:      ttl,
		stunURLs: stunURLs,
		turnURLs: turnURLs,
		now:      time.Now,
	}
}

// Issue mints a credential scoped to room/participant/role. A zero ttl
// falls back to the issuer default.
func (i *Issuer) Issue(roomKey domain.RoomKey, participantID domain.UserID, role domain.Role, ttl time.Duration) (Credential, error) {
	if len(i.secret) == 0 {
		return Credential{}, core.ErrConfiguration
	}
	if roomKey == "" || participantID == "" {
		return Credential{}, fmt.Errorf("%w: room key and participant id required", core.ErrValidation)
	}
	if strings.ContainsRune(string(participantID), ':') {
		return Credential{}, fmt.Errorf("%w: participant id must not contain ':'", core.ErrValidation)
	}
	if ttl <= 0 {
		ttl = i.ttl
	}
	expires := i.now().UTC().Add(ttl).Truncate(time.Second)
	username := fmt.Sprintf("%d:%s:%s:%s", expires.Unix(), roomKey, participantID, role)
	return Credential{
		Username:   username,
		Password:   sign(i.secret, username),
		ExpiresAt:  expires,
		ICEServers: i.iceServers(username),
	}, nil
}

func (i *Issuer) iceServers(username string) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, 2)
	if len(i.stunURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: i.stunURLs})
	}
	if len(i.turnURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:       i.turnURLs,
			Username:   username,
			Credential: sign(i.secret, username),
		})
	}
	return servers
}

func sign(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
