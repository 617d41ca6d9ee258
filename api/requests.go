package api

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/google/uuid"
)

// queryFunc reads a query string value, returning "" when absent.
type queryFunc func(key string) string

func parseDeltaFilter(query queryFunc, namespaceID uuid.UUID, maxLimit int) (types.DeltaFilter, error) {
	cursor, err := types.ParseCursor(query("pointer"))
	if err != nil {
		return types.DeltaFilter{}, err
	}
	limit, err := types.ParseLimit(query("limit"), types.DefaultDeltaLimit, maxLimit)
	if err != nil {
		return types.DeltaFilter{}, err
	}
	filter := types.DeltaFilter{
		Cursor:      cursor,
		Limit:       limit,
		NamespaceID: namespaceID,
	}
	if namespaceID == uuid.Nil {
		return filter, nil
	}
	if filter.ExcludeTypes, err = types.ParseObjectTypes(query("exclude_types")); err != nil {
		return types.DeltaFilter{}, err
	}
	filter.Collapse = parseBool(query("collapse"))
	return filter, nil
}

func parseBool(raw string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && value
}

type generateCursorRequest struct {
	Start json.Number `json:"start"`
}

// parseStart reads the unix timestamp of a generate_cursor request.
func parseStart(body []byte) (time.Time, error) {
	var req generateCursorRequest
	if len(body) == 0 {
		return time.Time{}, types.NewInputError(types.TextCodeInvalidTimestamp, "start timestamp required")
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return time.Time{}, types.NewInputError(types.TextCodeInvalidPayload, "malformed json body")
	}
	if req.Start == "" {
		return time.Time{}, types.NewInputError(types.TextCodeInvalidTimestamp, "start timestamp required")
	}
	seconds, err := req.Start.Float64()
	if err != nil || seconds < 0 {
		return time.Time{}, types.NewInputError(types.TextCodeInvalidTimestamp, "invalid timestamp: "+req.Start.String())
	}
	whole := int64(seconds)
	nanos := int64((seconds - float64(whole)) * float64(time.Second))
	return time.Unix(whole, nanos).UTC(), nil
}

type tagsRequest struct {
	Add     []string `json:"add"`
	Remove  []string `json:"remove"`
	Version *int64   `json:"version"`
}

func parseTags(body []byte) (tagsRequest, error) {
	var req tagsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return tagsRequest{}, types.NewInputError(types.TextCodeInvalidPayload, "malformed json body")
	}
	return req, nil
}

type callbackRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	State    string `json:"state"`
	Password string `json:"password"`
	IMAPHost string `json:"imap_server_host"`
	IMAPPort int    `json:"imap_server_port"`
	SMTPHost string `json:"smtp_server_host"`
	SMTPPort int    `json:"smtp_server_port"`
}

func parseCallback(body []byte, query queryFunc) (callbackRequest, error) {
	var req callbackRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return callbackRequest{}, types.NewInputError(types.TextCodeInvalidPayload, "malformed json body")
		}
	}
	// OAuth redirects deliver code and state on the query string.
	if req.Code == "" {
		req.Code = strings.TrimSpace(query("code"))
	}
	if req.State == "" {
		req.State = strings.TrimSpace(query("state"))
	}
	if req.Email == "" {
		req.Email = strings.TrimSpace(query("email"))
	}
	return req, nil
}
