package authz

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/office-erp/internal"
)

// DenialResponse is the body API clients receive on a 403.
type DenialResponse struct {
	Code          internal.ErrorCode `json:"code"`
	Reason        string             `json:"reason"`
	Resource      string             `json:"resource,omitempty"`
	Action        string             `json:"action,omitempty"`
	AttemptedPath string             `json:"attempted_path,omitempty"`
	Alternatives  []string           `json:"alternatives,omitempty"`
}

// DenyResponder turns an AuthorizationError into an HTTP response. Browsers are
// redirected to the unauthorized page and the attempted path is kept in a short-lived
// cookie; API clients get a JSON 403.
type DenyResponder struct {
	UnauthorizedPath string
	CookieName       string
	CookieTTL        time.Duration
	logger           *slog.Logger
}

func NewDenyResponder(cfg internal.AuthzConfig, logger *slog.Logger) *DenyResponder {
	d := &DenyResponder{
		UnauthorizedPath: cfg.UnauthorizedPath,
		CookieName:       cfg.AttemptedPathName,
		CookieTTL:        cfg.AttemptedPathTTL,
		logger:           logger,
	}
	if d.UnauthorizedPath == "" {
		d.UnauthorizedPath = internal.DefaultUnauthorizedPath
	}
	if d.CookieName == "" {
		d.CookieName = internal.DefaultAttemptedPathName
	}
	if d.CookieTTL <= 0 {
		d.CookieTTL = 5 * time.Minute
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

func (d *DenyResponder) Respond(w http.ResponseWriter, r *http.Request, denial *AuthorizationError) {
	attempted := attemptedPath(r)

	if wantsHTML(r) {
		http.SetCookie(w, &http.Cookie{
			Name:     d.CookieName,
			Value:    url.QueryEscape(attempted),
			Path:     "/",
			MaxAge:   int(d.CookieTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		target := d.UnauthorizedPath + "?reason=" + url.QueryEscape(string(denial.Reason))
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusForbidden, DenialResponse{
		Code:          internal.ErrCodePermissionDenied,
		Reason:        string(denial.Reason),
		Resource:      denial.Resource.String(),
		Action:        denial.Action.String(),
		AttemptedPath: attempted,
		Alternatives:  denial.AlternativeNames(),
	})
}

// Unauthorized serves the page a denied browser lands on. The attempted path is shown
// once and the cookie cleared.
func (d *DenyResponder) Unauthorized(w http.ResponseWriter, r *http.Request) {
	resp := DenialResponse{
		Code:   internal.ErrCodePermissionDenied,
		Reason: r.URL.Query().Get("reason"),
	}
	if resp.Reason == "" {
		resp.Reason = string(ReasonNotGranted)
	}
	if c, err := r.Cookie(d.CookieName); err == nil {
		if path, err := url.QueryUnescape(c.Value); err == nil {
			resp.AttemptedPath = path
		}
		http.SetCookie(w, &http.Cookie{
			Name:     d.CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Authorization guards routes with resolver decisions taken from the request's
// authz.Request.
type Authorization struct {
	deny   *DenyResponder
	logger *slog.Logger
}

func NewAuthorization(deny *DenyResponder, logger *slog.Logger) *Authorization {
	return &Authorization{deny: deny, logger: logger}
}

func (a *Authorization) Require(resource Resource, action Action) func(http.Handler) http.Handler {
	return a.check(func(r *http.Request, q *Request) error {
		return q.Require(r.Context(), resource, action)
	})
}

// RequireAny passes when any one of checks is granted.
func (a *Authorization) RequireAny(checks ...Check) func(http.Handler) http.Handler {
	return a.check(func(r *http.Request, q *Request) error {
		ok, err := q.CanAny(r.Context(), checks...)
		if err != nil {
			return err
		}
		if !ok {
			return DenyAny(q.Subject().UserID, checks)
		}
		return nil
	})
}

// RequireRowAccess checks verb on the row named by the URL parameter param using the
// subject's scope and the row's ownership.
func (a *Authorization) RequireRowAccess(resource Resource, verb Action, rows RowRelations, param string) func(http.Handler) http.Handler {
	return a.check(func(r *http.Request, q *Request) error {
		id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
		if err != nil {
			return internal.NewValidationError("invalid id", internal.ErrCodeValidationFailed)
		}

		if err := q.Require(r.Context(), resource, verb); err != nil {
			return err
		}
		vis, err := q.Visibility(r.Context(), resource, verb)
		if err != nil {
			return err
		}
		if vis.All {
			return nil
		}

		rel, err := rows.Relation(r.Context(), resource, id, q.Subject())
		if err != nil {
			return err
		}
		if !rel.Exists {
			return internal.NewNotFoundError("resource not found", notFoundCode(resource))
		}
		if !vis.Permits(rel.IsOwner, rel.IsAssigned) {
			return Deny(q.Subject().UserID, resource, verb, ReasonOutOfScope)
		}
		return nil
	})
}

func (a *Authorization) check(decide func(r *http.Request, q *Request) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q, ok := RequestFromContext(r.Context())
			if !ok {
				a.logger.WarnContext(r.Context(), "authorization check failed: no authenticated subject in context")
				writeJSON(w, http.StatusUnauthorized, DenialResponse{
					Code:   internal.ErrCodeInvalidToken,
					Reason: string(ReasonUnauthenticated),
				})
				return
			}

			err := decide(r, q)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			if denial, ok := IsDenied(err); ok {
				a.deny.Respond(w, r, denial)
				return
			}
			var appErr *internal.AppError
			if errors.As(err, &appErr) && appErr.Type != internal.ErrorTypeInternal {
				status, body := appErr.ToHTTPResponse()
				writeJSON(w, status, body)
				return
			}

			a.logger.ErrorContext(r.Context(), "authorization check failed", "error", err, "user_id", q.Subject().UserID)
			writeJSON(w, http.StatusInternalServerError, internal.Response{
				Error: internal.NewInternalError("Internal server error", nil),
			})
		})
	}
}

func attemptedPath(r *http.Request) string {
	if path := internal.RequestPathFromContext(r.Context()); path != "" {
		return path
	}
	return r.URL.RequestURI()
}

func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
