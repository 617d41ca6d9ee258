package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/goliatone/go-mailsync/account"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/command"
	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/goliatone/go-mailsync/provider"
	"github.com/goliatone/go-mailsync/query"
	"github.com/goliatone/go-mailsync/service"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// NamespaceResolver turns the namespace path segment (public id or UUID)
// into a namespace. *account.Repository satisfies it.
type NamespaceResolver interface {
	ResolveNamespace(ctx context.Context, raw string) (*account.Namespace, error)
}

// Config wires the HTTP handlers.
type Config struct {
	Service    *service.Service
	Namespaces NamespaceResolver
	MaxLimit   int
	Logger     types.Logger
}

// Handlers renders the service facades over HTTP.
type Handlers struct {
	commands   service.Commands
	queries    service.Queries
	namespaces NamespaceResolver
	maxLimit   int
	logger     types.Logger
}

// New builds the handlers.
func New(cfg Config) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = types.MaxDeltaLimit
	}
	h := &Handlers{namespaces: cfg.Namespaces, maxLimit: maxLimit, logger: logger}
	if cfg.Service != nil {
		h.commands = cfg.Service.Commands()
		h.queries = cfg.Service.Queries()
	}
	return h
}

// Register mounts every route on r.
func Register[T any](r router.Router[T], h *Handlers) {
	r.Get("/delta_stream", h.DeltaStream)

	ns := r.Group("/n/:namespace_id")
	ns.Get("/delta", h.NamespaceDelta)
	ns.Post("/delta/generate_cursor", h.GenerateCursor)
	ns.Get("/delta/latest_cursor", h.LatestCursor)
	ns.Put("/threads/:public_id/tags", h.ThreadTags)
	ns.Post("/actions/:id/requeue", h.RequeueAction)
	ns.Get("/account", h.AccountStatus)

	auth := r.Group("/auth")
	auth.Get("/provider/:email", h.ProviderLookup)
	auth.Get("/:provider/init", h.AuthInit)
	auth.Post("/:provider/callback", h.AuthCallback)
}

// DeltaStream serves the global feed.
func (h *Handlers) DeltaStream(c router.Context) error {
	filter, err := parseDeltaFilter(queryOf(c), uuid.Nil, h.maxLimit)
	if err != nil {
		return h.fail(c, err)
	}
	page, err := h.queries.Delta.Query(c.Context(), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return writeJSON(c, http.StatusOK, page)
}

// NamespaceDelta serves the feed of one namespace.
func (h *Handlers) NamespaceDelta(c router.Context) error {
	namespaceID, err := h.namespace(c)
	if err != nil {
		return h.fail(c, err)
	}
	filter, err := parseDeltaFilter(queryOf(c), namespaceID, h.maxLimit)
	if err != nil {
		return h.fail(c, err)
	}
	page, err := h.queries.Delta.Query(c.Context(), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return writeJSON(c, http.StatusOK, page)
}

// GenerateCursor maps a unix timestamp onto a cursor.
func (h *Handlers) GenerateCursor(c router.Context) error {
	namespaceID, err := h.namespace(c)
	if err != nil {
		return h.fail(c, err)
	}
	start, err := parseStart(c.Body())
	if err != nil {
		return h.fail(c, err)
	}
	result, err := h.queries.GenerateCursor.Query(c.Context(), query.GenerateCursorInput{
		NamespaceID: namespaceID,
		Start:       start,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return writeJSON(c, http.StatusOK, result)
}

// LatestCursor returns the head of the namespace log.
func (h *Handlers) LatestCursor(c router.Context) error {
	namespaceID, err := h.namespace(c)
	if err != nil {
		return h.fail(c, err)
	}
	result, err := h.queries.LatestCursor.Query(c.Context(), query.LatestCursorInput{NamespaceID: namespaceID})
	if err != nil {
		return h.fail(c, err)
	}
	return writeJSON(c, http.StatusOK, result)
}

// ThreadTags adds and removes thread tags.
func (h *Handlers) ThreadTags(c router.Context) error {
	namespaceID, err := h.namespace(c)
	if err != nil {
		return h.fail(c, err)
	}
	req, err := parseTags(c.Body())
	if err != nil {
		return h.fail(c, err)
	}
	result := &command.ThreadTagsResult{}
	if err := h.commands.ThreadTags.Execute(c.Context(), command.ThreadTagsInput{
		NamespaceID:     namespaceID,
		ThreadID:        c.Param("public_id", ""),
		Add:             req.Add,
		Remove:          req.Remove,
		ExpectedVersion: req.Version,
		Result:          result,
	}); err != nil {
		return h.fail(c, err)
	}
	return writeJSON(c, http.StatusOK, result.Thread.Snapshot())
}

// RequeueAction moves a failed action back to pending.
func (h *Handlers) RequeueAction(c router.Context) error {
	namespaceID, err := h.namespace(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := uuid.Parse(c.Param("id", ""))
	if err != nil {
		return h.fail(c, types.NewNotFoundError("action not found"))
	}
	result := &actions.Entry{}
	if err := h.commands.RequeueAction.Execute(c.Context(), command.RequeueActionInput{
		NamespaceID: namespaceID,
		ActionID:    id,
		Result:      result,
	}); err != nil {
		return h.fail(c, err)
	}
	return writeJSON(c, http.StatusOK, result)
}

// AccountStatus reports the sync state of the namespace's account.
func (h *Handlers) AccountStatus(c router.Context) error {
	namespaceID, err := h.namespace(c)
	if err != nil {
		return h.fail(c, err)
	}
	view, err := h.queries.AccountStatus.Query(c.Context(), query.AccountStatusInput{NamespaceID: namespaceID})
	if err != nil {
		return h.fail(c, err)
	}
	return writeJSON(c, http.StatusOK, view)
}

// ProviderLookup tells a client how to authenticate an address.
func (h *Handlers) ProviderLookup(c router.Context) error {
	result, err := h.queries.ProviderLookup.Query(c.Context(), query.ProviderLookupInput{Email: c.Param("email", "")})
	if err != nil {
		return h.fail(c, err)
	}
	return writeJSON(c, http.StatusOK, result)
}

// AuthInit starts the provider auth flow.
func (h *Handlers) AuthInit(c router.Context) error {
	challenge, err := h.queries.AuthChallenge.Query(c.Context(), query.AuthChallengeInput{
		Provider: c.Param("provider", ""),
		Email:    c.Query("email", ""),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return writeJSON(c, http.StatusOK, challenge)
}

type accountResponse struct {
	NamespaceID string             `json:"namespace_id"`
	Account     account.StatusView `json:"account"`
}

// AuthCallback completes the auth flow and provisions the account.
func (h *Handlers) AuthCallback(c router.Context) error {
	req, err := parseCallback(c.Body(), queryOf(c))
	if err != nil {
		return h.fail(c, err)
	}
	result := &command.CreateAccountResult{}
	if err := h.commands.CreateAccount.Execute(c.Context(), command.CreateAccountInput{
		Provider: strings.ToLower(c.Param("provider", "")),
		Email:    req.Email,
		Auth: provider.AuthInput{
			Email:    req.Email,
			Code:     req.Code,
			State:    req.State,
			Password: req.Password,
			IMAPHost: req.IMAPHost,
			IMAPPort: req.IMAPPort,
			SMTPHost: req.SMTPHost,
			SMTPPort: req.SMTPPort,
		},
		Verify: true,
		Result: result,
	}); err != nil {
		return h.fail(c, err)
	}
	return writeJSON(c, http.StatusOK, accountResponse{
		NamespaceID: result.Namespace.PublicID,
		Account:     result.Account.Status(),
	})
}

func (h *Handlers) namespace(c router.Context) (uuid.UUID, error) {
	raw := c.Param("namespace_id", "")
	if h.namespaces == nil {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, types.NewNotFoundError("namespace not found", map[string]any{"namespace_id": raw})
		}
		return id, nil
	}
	ns, err := h.namespaces.ResolveNamespace(c.Context(), raw)
	if err != nil {
		return uuid.Nil, err
	}
	return ns.ID, nil
}

func (h *Handlers) fail(c router.Context, err error) error {
	status, body := errorPayload(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", err, "status", status)
	}
	return writeJSON(c, status, body)
}

func queryOf(c router.Context) queryFunc {
	return func(key string) string {
		return c.Query(key, "")
	}
}

func writeJSON(c router.Context, status int, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return c.Status(http.StatusInternalServerError).SendString("failed to marshal JSON")
	}
	c.SetHeader("Content-Type", "application/json")
	return c.Status(status).Send(data)
}
