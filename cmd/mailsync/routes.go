package main

import (
	"net/http"

	"github.com/goliatone/go-crud"
	"github.com/goliatone/go-mailsync/actions"
	"github.com/goliatone/go-mailsync/api"
	"github.com/goliatone/go-mailsync/crudsvc"
	"github.com/goliatone/go-mailsync/syncback"
	"github.com/goliatone/go-router"
)

func RegisterAPIRoutes(app *App) {
	logger := app.GetLogger("api")
	r := app.srv.Router()

	r.Get("/health", func(c router.Context) error {
		if err := app.mailsync.HealthCheck(c.Context()); err != nil {
			return c.Status(http.StatusServiceUnavailable).SendString(err.Error())
		}
		return c.Status(http.StatusOK).SendString("ok")
	})

	handlers := api.New(api.Config{
		Service:    app.mailsync,
		Namespaces: app.accounts,
		MaxLimit:   app.Config().Delta.MaxLimit,
		Logger:     &loggerAdapter{logger},
	})
	api.Register(r, handlers)

	// Action log administration, namespace selected with ?namespace_id=.
	admin := r.Group("/admin")
	actionService := crudsvc.NewActionLogService(crudsvc.ActionLogServiceConfig{
		Namespaces: app.accounts,
		List:       app.mailsync.Queries().ActionList,
		Finder:     app.actions,
		Requeue:    app.mailsync.Commands().RequeueAction,
	},
		crudsvc.WithLogger(&loggerAdapter{app.GetLogger("admin")}),
		crudsvc.WithMasker(syncback.DefaultMasker()),
	)
	actionController := crud.NewController(actions.NewBaseRepository(app.bunDB),
		crudsvc.WithCommandService[*actions.Entry](actionService),
		crud.WithRouteConfig[*actions.Entry](crud.RouteConfig{
			Operations: map[crud.CrudOperation]crud.RouteOptions{
				crud.OpCreate:      {Enabled: crud.BoolPtr(false)},
				crud.OpDelete:      {Enabled: crud.BoolPtr(false)},
				crud.OpCreateBatch: {Enabled: crud.BoolPtr(false)},
				crud.OpUpdateBatch: {Enabled: crud.BoolPtr(false)},
				crud.OpDeleteBatch: {Enabled: crud.BoolPtr(false)},
			},
		}),
	)
	actionController.RegisterRoutes(crud.NewGoRouterAdapter(admin))

	logger.Info("API routes registered", "admin", "/admin")
}
