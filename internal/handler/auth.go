package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/auth"
	"github.com/sakif/village-gacha/internal/response"
	"github.com/sakif/village-gacha/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler serves signup, password login and the GitHub OAuth flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignup         → create a password account
//   - HandleLogin          → verify credentials, return {token, user}
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → exchange the code, link or create the user, return {token, user}
//
// github is nil when GitHub sign-in is not configured; the server then
// does not register the two GitHub routes.
type AuthHandler struct {
	auth   *service.AuthService
	github *auth.GitHubProvider
	logger *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, github *auth.GitHubProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, github: github, logger: logger}
}

// HandleSignup creates an account.
//
// HTTP: POST /api/auth/signup
// REQUEST BODY: {"username":"alice","password":"pw123456","email":"a@x.com"}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.auth.Signup(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, "회원가입이 완료되었습니다.", user)
}

// HandleLogin issues a token.
//
// HTTP: POST /api/auth/login
// RESPONSE DATA: {"token":"eyJ...","user":{"userId":1,"username":"alice",...}}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.auth.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "로그인 성공", result)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /api/auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived HttpOnly cookie and sent to
// GitHub. The callback only proceeds when GitHub echoes the same value.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /api/auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub profile
//  3. Find, link or create the local user
//  4. Return {token, user} exactly like password login
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || q.Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		response.Error(w, apperror.WithMessage(apperror.CodeBadRequest, "잘못된 OAuth 요청입니다."))
		return
	}

	// single-use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		response.Error(w, apperror.WithMessage(apperror.CodeUnauthorized, "GitHub 인증이 취소되었습니다."))
		return
	}

	code := q.Get("code")
	if code == "" {
		response.Error(w, apperror.WithMessage(apperror.CodeBadRequest, "OAuth 코드가 없습니다."))
		return
	}

	// --- Step 2: Exchange code for GitHub profile ---
	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		response.Error(w, apperror.WithMessage(apperror.CodeUnauthorized, "GitHub 인증에 실패했습니다."))
		return
	}

	// --- Step 3 and 4 ---
	result, err := h.auth.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, "로그인 성공", result)
}
