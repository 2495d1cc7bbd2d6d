package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	web5 "github.com/totegamma/web5-playground"
	"github.com/totegamma/web5-playground/challenge"
	"github.com/totegamma/web5-playground/client"
	"github.com/totegamma/web5-playground/internal/domain"
	"github.com/totegamma/web5-playground/internal/present/rest/presenter"
	"github.com/totegamma/web5-playground/internal/usecase"
)

// FirehoseSource feeds ordered events into a websocket session. Tail
// blocks until ctx is cancelled.
type FirehoseSource interface {
	Tail(ctx context.Context, output chan<- domain.Event)
}

type Handler struct {
	config   domain.Config
	repo     *usecase.RepoUsecase
	account  *usecase.AccountUsecase
	action   *usecase.ActionUsecase
	firehose FirehoseSource
	ledger   *client.Client
}

func NewHandler(
	config domain.Config,
	repo *usecase.RepoUsecase,
	account *usecase.AccountUsecase,
	action *usecase.ActionUsecase,
	firehose FirehoseSource,
	ledger *client.Client,
) *Handler {
	return &Handler{
		config:   config,
		repo:     repo,
		account:  account,
		action:   action,
		firehose: firehose,
		ledger:   ledger,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/web5", h.handleWellKnown)
	e.GET("/health", h.handleHealth)
	e.GET("/firehose", h.handleFirehose)

	xrpc := e.Group("/xrpc")
	xrpc.POST("/web5.preCreateAccount", h.handlePreCreateAccount)
	xrpc.POST("/web5.createAccount", h.handleCreateAccount)
	xrpc.POST("/web5.preDirectWrites", h.handlePreDirectWrites)
	xrpc.POST("/web5.directWrites", h.handleDirectWrites)
	xrpc.POST("/web5.preIndexAction", h.handlePreIndexAction)
	xrpc.POST("/web5.indexAction", h.handleIndexAction)
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	wellknown := web5.WellKnownWeb5{
		Version:   "1.0",
		Domain:    h.config.FQDN,
		ServerKey: h.config.ServerKey,
		Endpoints: map[string]web5.Web5Endpoint{
			"web5.preCreateAccount": {
				Template: "/xrpc/web5.preCreateAccount",
				Method:   "POST",
			},
			"web5.createAccount": {
				Template: "/xrpc/web5.createAccount",
				Method:   "POST",
			},
			"web5.preDirectWrites": {
				Template: "/xrpc/web5.preDirectWrites",
				Method:   "POST",
			},
			"web5.directWrites": {
				Template: "/xrpc/web5.directWrites",
				Method:   "POST",
			},
			"web5.preIndexAction": {
				Template: "/xrpc/web5.preIndexAction",
				Method:   "POST",
			},
			"web5.indexAction": {
				Template: "/xrpc/web5.indexAction",
				Method:   "POST",
			},
			"web5.firehose": {
				Template: "/firehose",
				Method:   "GET",
			},
		},
	}
	return presenter.OK(c, wellknown)
}

func (h *Handler) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()

	status := "ok"
	info, err := h.ledger.GetLedgerInfo(ctx)
	if err != nil {
		status = "degraded"
	}

	return presenter.OK(c, echo.Map{
		"status": status,
		"ledger": info,
	})
}

type preCreateAccountRequest struct {
	Handle string `json:"handle"`
	DID    string `json:"did"`
}

func (h *Handler) handlePreCreateAccount(c echo.Context) error {
	ctx := c.Request().Context()

	var req preCreateAccountRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	unsigned, err := h.account.PreCreateAccount(ctx, usecase.PreCreateAccountInput{
		Handle: req.Handle,
		DID:    req.DID,
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, unsigned)
}

type createAccountRequest struct {
	Handle     string          `json:"handle"`
	DID        string          `json:"did"`
	Address    string          `json:"address"`
	SigningKey string          `json:"signingKey"`
	Root       web5.SignedRoot `json:"root"`
}

type sessionResponse struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	Email      string `json:"email,omitempty"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

func (h *Handler) handleCreateAccount(c echo.Context) error {
	ctx := c.Request().Context()

	var req createAccountRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	out, err := h.account.CreateAccount(ctx, usecase.CreateAccountInput{
		Handle:     req.Handle,
		DID:        req.DID,
		Address:    req.Address,
		SigningKey: req.SigningKey,
		Root:       req.Root,
	})
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.OK(c, sessionResponse{
		DID:        out.DID,
		Handle:     out.Handle,
		AccessJwt:  out.Session.AccessToken,
		RefreshJwt: out.Session.RefreshToken,
	})
}

type directWritesRequest struct {
	Repo       string            `json:"repo"`
	Address    string            `json:"address"`
	SigningKey string            `json:"signingKey"`
	Validate   *bool             `json:"validate,omitempty"`
	SwapCommit *string           `json:"swapCommit,omitempty"`
	Writes     []usecase.WriteOp `json:"writes"`
	Root       web5.SignedRoot   `json:"root"`
}

func (req directWritesRequest) validateFlag() bool {
	if req.Validate == nil {
		return true
	}
	return *req.Validate
}

func requesterID(c echo.Context) (string, bool) {
	did, ok := c.Request().Context().Value(domain.RequesterIdCtxKey).(string)
	return did, ok && did != ""
}

func (h *Handler) handlePreDirectWrites(c echo.Context) error {
	ctx := c.Request().Context()

	requester, ok := requesterID(c)
	if !ok {
		return presenter.Unauthorized(c, "authentication required")
	}

	var req directWritesRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	unsigned, err := h.repo.PreDirectWrites(ctx, usecase.PreDirectWritesInput{
		Repo:       req.Repo,
		AuthDID:    requester,
		Validate:   req.validateFlag(),
		SwapCommit: req.SwapCommit,
		Writes:     req.Writes,
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, unsigned)
}

func (h *Handler) handleDirectWrites(c echo.Context) error {
	ctx := c.Request().Context()

	requester, ok := requesterID(c)
	if !ok {
		return presenter.Unauthorized(c, "authentication required")
	}

	var req directWritesRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	out, err := h.repo.DirectWrites(ctx, usecase.DirectWritesInput{
		Repo:       req.Repo,
		AuthDID:    requester,
		Address:    req.Address,
		SigningKey: req.SigningKey,
		Validate:   req.validateFlag(),
		SwapCommit: req.SwapCommit,
		Writes:     req.Writes,
		Root:       req.Root,
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, out)
}

type indexActionRequest struct {
	DID         string `json:"did"`
	Address     string `json:"address"`
	Action      string `json:"action"`
	Message     string `json:"message,omitempty"`
	SigningKey  string `json:"signingKey,omitempty"`
	SignedBytes string `json:"signedBytes,omitempty"`
}

func (h *Handler) handlePreIndexAction(c echo.Context) error {
	ctx := c.Request().Context()

	var req indexActionRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	action, err := challenge.ParseAction(req.Action)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	out, err := h.action.PreIndexAction(ctx, usecase.PreIndexActionInput{
		DID:     req.DID,
		Address: req.Address,
		Action:  action,
	})
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, out)
}

func (h *Handler) handleIndexAction(c echo.Context) error {
	ctx := c.Request().Context()

	var req indexActionRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	action, err := challenge.ParseAction(req.Action)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	out, err := h.action.IndexAction(ctx, usecase.IndexActionInput{
		DID:         req.DID,
		Address:     req.Address,
		Message:     req.Message,
		SigningKey:  req.SigningKey,
		SignedBytes: req.SignedBytes,
		Action:      action,
	})
	if err != nil {
		return presenter.FromError(c, err)
	}

	if out.Session != nil {
		return presenter.OK(c, sessionResponse{
			DID:        out.DID,
			Handle:     out.Handle,
			Email:      out.Email,
			AccessJwt:  out.Session.AccessToken,
			RefreshJwt: out.Session.RefreshToken,
		})
	}
	return presenter.OK(c, out)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type firehoseRequest struct {
	Type string `json:"type"`
}

func (h *Handler) handleFirehose(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "firehose"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	output := make(chan domain.Event)
	go h.firehose.Tail(ctx, output)

	quit := make(chan struct{})

	go func() {
		for {
			var req firehoseRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "firehose"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "firehose"),
					)
				}

				// close, not send: the writer may already be gone after a
				// write error and nobody would receive.
				close(quit)
				break
			}

			switch req.Type {
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "firehose"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "firehose"),
				)
				return nil
			}
		}
	}
}
