package hostapp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/aussiebroadwan/aichef/pkg/identity"
)

// InitData is the launch payload a host container hands to an embedded app.
// It arrives URL-encoded, with the user as a JSON object.
type InitData struct {
	User       *identity.HostUser
	AuthDate   time.Time
	Hash       string
	QueryID    string
	StartParam string

	// Raw is the payload exactly as received, for providers that want to
	// re-check the signature themselves.
	Raw string
}

// ParseInitData decodes a launch payload. A payload without a user is
// valid; it means the container was opened outside a user context.
func ParseInitData(raw string) (*InitData, error) {
	q, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("hostapp: invalid init data: %w", err)
	}

	d := &InitData{
		Hash:       q.Get("hash"),
		QueryID:    q.Get("query_id"),
		StartParam: q.Get("start_param"),
		Raw:        raw,
	}

	if s := q.Get("auth_date"); s != "" {
		secs, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("hostapp: invalid auth_date %q", s)
		}
		d.AuthDate = time.Unix(secs, 0).UTC()
	}

	if s := q.Get("user"); s != "" {
		var u identity.HostUser
		if err := json.Unmarshal([]byte(s), &u); err != nil {
			return nil, fmt.Errorf("hostapp: invalid user: %w", err)
		}
		if u.ID == 0 {
			return nil, fmt.Errorf("hostapp: user without id")
		}
		d.User = &u
	}

	return d, nil
}
