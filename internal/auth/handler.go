package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gramy/gramy/internal/platform/httpx"
	"github.com/gramy/gramy/internal/shared"
	"github.com/gramy/gramy/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	renderer       *view.Renderer
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, renderer *view.Renderer, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		renderer:       renderer,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth pages under /auth.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)
}

// MountAPI registers JSON auth endpoints under /api/auth.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/session", h.sessionAPI)
	r.Post("/login", h.loginAPI)
	r.Post("/logout", h.logoutAPI)
}

type formPageData struct {
	Email    string
	Username string
	Errors   map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.renderer.Page(w, r, http.StatusOK, "pages/login.html", "Sign in", formPageData{})
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	h.renderer.Page(w, r, http.StatusOK, "pages/register.html", "Create account", formPageData{})
}

// signIn swaps the session id before binding it to the account.
func (h *Handler) signIn(r *http.Request, account Account) error {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return errors.New("session missing during login")
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		return err
	}
	sess.SetUser(account.ID)
	return nil
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := LoginInput{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				errs[strings.ToLower(fieldErr.Field())] = fieldErr.Field() + " is invalid"
			}
		}
	}
	if len(errs) == 0 {
		account, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
		switch {
		case errors.Is(err, shared.ErrInvalidCredentials):
			errs["general"] = "Invalid email or password"
		case err != nil:
			h.logger.Error("authenticate", slog.Any("error", err))
			errs["general"] = "Something went wrong. Please try again."
		default:
			if err := h.signIn(r, account); err != nil {
				h.logger.Error("sign in", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			view.RedirectWithFlash(w, r, httpx.LocalPath(r.PostFormValue("next"), "/"), "success", "Welcome back, "+account.Username)
			return
		}
	}
	h.renderer.Page(w, r, http.StatusBadRequest, "pages/login.html", "Sign in", formPageData{Email: form.Email, Errors: errs})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := RegisterInput{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	res := h.service.Register(r.Context(), in)
	if !res.Success {
		data := formPageData{Email: in.Email, Username: in.Username, Errors: map[string]string{"general": res.Error}}
		h.renderer.Page(w, r, res.Status(), "pages/register.html", "Create account", data)
		return
	}
	if err := h.signIn(r, res.Data); err != nil {
		h.logger.Error("sign in after register", slog.Any("error", err))
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	view.RedirectWithFlash(w, r, "/profile/"+res.Data.Username, "success", "Welcome to Gramy!")
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type sessionResponse struct {
	CSRFToken string `json:"csrf_token"`
	UserID    string `json:"user_id,omitempty"`
}

func (h *Handler) sessionAPI(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(sess)
	if err != nil {
		h.logger.Error("ensure csrf token", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "Failed to start session")
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{CSRFToken: token, UserID: sess.User()})
}

func (h *Handler) loginAPI(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	account, err := h.service.Authenticate(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Error(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	if err := h.signIn(r, account); err != nil {
		h.logger.Error("sign in", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	token, _ := h.csrfManager.EnsureToken(sess)
	httpx.JSON(w, http.StatusOK, sessionResponse{CSRFToken: token, UserID: account.ID})
}

func (h *Handler) logoutAPI(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}
