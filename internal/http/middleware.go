package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/fjod/bakery-storefront/internal/domain"
	"github.com/fjod/bakery-storefront/pkg/logger"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	ownerKey     contextKey = "owner"
	adminKey     contextKey = "admin"
	languageKey  contextKey = "language"

	GuestCookieName = "guest_id"
	GuestHeaderName = "X-Guest-ID"

	guestCookieMaxAge = 365 * 24 * 60 * 60
)

var supportedLanguages = []language.Tag{language.Vietnamese, language.Chinese}

var languageMatcher = language.NewMatcher(supportedLanguages)

// Claims is the bearer token payload issued by the account service.
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware writes one structured line per request.
func LoggingMiddleware(l *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			requestLogger(r, l).Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// OwnerMiddleware resolves whose cart a request addresses. A valid bearer
// token selects the user scope; without one the request is a guest keyed by
// the guest_id cookie or X-Guest-ID header, and a fresh guest id is issued
// when neither is present. An invalid token is rejected rather than
// downgraded to a guest.
func OwnerMiddleware(jwtSecret string, secureCookies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if token, ok := bearerToken(r); ok {
				claims, err := parseToken(token, jwtSecret)
				if err != nil {
					respondError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
					return
				}
				ctx = context.WithValue(ctx, ownerKey, domain.UserScope(claims.Subject))
				ctx = context.WithValue(ctx, adminKey, claims.Admin)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			guestID := guestIDFromRequest(r)
			if guestID == "" {
				guestID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     GuestCookieName,
					Value:    guestID,
					Path:     "/",
					MaxAge:   guestCookieMaxAge,
					HttpOnly: true,
					Secure:   secureCookies,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(GuestHeaderName, guestID)

			ctx = context.WithValue(ctx, ownerKey, domain.GuestScope(guestID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LanguageMiddleware picks vi or zh from ?lang= or Accept-Language.
func LanguageMiddleware(fallback language.Tag) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := fallback
			tags := parseTags(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
			if len(tags) > 0 {
				if _, idx, conf := languageMatcher.Match(tags...); conf != language.No {
					lang = supportedLanguages[idx]
				}
			}

			w.Header().Set("Content-Language", lang.String())
			ctx := context.WithValue(r.Context(), languageKey, lang)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects guest requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getOwner(r.Context()).IsGuest() {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose token lacks the admin claim.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getOwner(r.Context()).IsGuest() {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		if admin, _ := r.Context().Value(adminKey).(bool); !admin {
			respondError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}

func parseToken(raw, secret string) (*Claims, error) {
	if secret == "" || raw == "" {
		return nil, errors.New("token authentication disabled")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func guestIDFromRequest(r *http.Request) string {
	candidates := []string{r.Header.Get(GuestHeaderName)}
	if c, err := r.Cookie(GuestCookieName); err == nil {
		candidates = append([]string{c.Value}, candidates...)
	}
	for _, id := range candidates {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	return ""
}

func parseTags(query, header string) []language.Tag {
	var tags []language.Tag
	if t, err := language.Parse(query); err == nil {
		tags = append(tags, t)
	}
	if accepted, _, err := language.ParseAcceptLanguage(header); err == nil {
		tags = append(tags, accepted...)
	}
	return tags
}

func getOwner(ctx context.Context) domain.OwnerScope {
	if owner, ok := ctx.Value(ownerKey).(domain.OwnerScope); ok {
		return owner
	}
	return domain.GuestScope("")
}

func getLanguage(ctx context.Context) language.Tag {
	if lang, ok := ctx.Value(languageKey).(language.Tag); ok {
		return lang
	}
	return language.Vietnamese
}

func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func requestLogger(r *http.Request, l *zap.Logger) *zap.Logger {
	return logger.WithTrace(r.Context(), l).With(zap.String("request_id", getRequestID(r.Context())))
}
