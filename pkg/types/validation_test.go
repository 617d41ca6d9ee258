package types

import (
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestParseCursor(t *testing.T) {
	v, err := ParseCursor(" 42 ")
	require.NoError(t, err)
	require.Equal(t, int64(42), v)

	for _, raw := range []string{"", "-1", "abc", "1.5"} {
		_, err := ParseCursor(raw)
		require.Error(t, err, raw)
		require.Equal(t, http.StatusBadRequest, HTTPStatus(err), raw)
	}
}

func TestParseLimit(t *testing.T) {
	v, err := ParseLimit("", DefaultDeltaLimit, MaxDeltaLimit)
	require.NoError(t, err)
	require.Equal(t, DefaultDeltaLimit, v)

	v, err = ParseLimit("0", DefaultDeltaLimit, MaxDeltaLimit)
	require.NoError(t, err)
	require.Zero(t, v)

	_, err = ParseLimit("10001", DefaultDeltaLimit, MaxDeltaLimit)
	require.Error(t, err)

	var rich *goerrors.Error
	require.ErrorAs(t, err, &rich)
	require.Equal(t, TextCodeInvalidLimit, rich.TextCode)
}

func TestParseObjectTypesDeduplicates(t *testing.T) {
	got, err := ParseObjectTypes("message, thread,message,")
	require.NoError(t, err)
	require.Equal(t, []ObjectType{ObjectTypeMessage, ObjectTypeThread}, got)

	_, err = ParseObjectTypes("message,folder")
	require.Error(t, err)
}

func TestValidPublicID(t *testing.T) {
	require.NoError(t, ValidPublicID("78pgxboai332pi9p2smo4db73"))
	require.Error(t, ValidPublicID(""))
	require.Error(t, ValidPublicID("abc-def"))
	require.Error(t, ValidPublicID("ñandu"))
}

func TestHTTPStatusMapping(t *testing.T) {
	ns := uuid.New()
	require.Equal(t, http.StatusForbidden, HTTPStatus(NewActionError(http.StatusForbidden, ns)))
	require.Equal(t, http.StatusConflict, HTTPStatus(NewConflictError("stale")))
	require.Equal(t, http.StatusNotFound, HTTPStatus(NewNotFoundError("missing")))
	require.Equal(t, http.StatusBadGateway, HTTPStatus(NewTransientError(nil, "vault down")))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrServiceNotReady))
	require.True(t, IsTransient(NewTransientError(nil, "oauth")))
	require.False(t, IsTransient(ErrServiceNotReady))

	rich := ToRichError(NewActionError(http.StatusForbidden, ns))
	require.Equal(t, TextCodeActionBlocked, rich.TextCode)
	require.Equal(t, ns.String(), rich.Metadata["namespace_id"])
}

func TestDeltaFilterValidate(t *testing.T) {
	require.NoError(t, DeltaFilter{Cursor: 0, Limit: 10}.Validate())
	require.Error(t, DeltaFilter{Cursor: -1}.Validate())
	require.Error(t, DeltaFilter{ExcludeTypes: []ObjectType{"folder"}}.Validate())
}

type backfilled struct{ skip bool }

func (backfilled) RevisionKey() RevisionKey        { return RevisionKey{ObjectType: ObjectTypeMessage} }
func (backfilled) VersionedFields() map[string]any { return nil }
func (backfilled) Snapshot() any                   { return nil }
func (b backfilled) SuppressRevision() bool        { return b.skip }

func TestChangeRevisable(t *testing.T) {
	_, ok := Change{Object: backfilled{skip: true}}.Revisable()
	require.False(t, ok)

	_, ok = Change{Object: backfilled{}}.Revisable()
	require.True(t, ok)

	_, ok = Change{Object: struct{}{}}.Revisable()
	require.False(t, ok)
}
