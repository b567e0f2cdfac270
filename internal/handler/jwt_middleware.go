package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"mediatrack/internal/identity"
	"mediatrack/internal/service"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const (
	CtxIdentity ctxKey = "identity"
	CtxSession  ctxKey = "session"
)

// JWTAuth validates the bearer token and puts the caller's identity in the
// context. Websocket clients that cannot set headers pass ?access_token=.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	secretBytes := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid Authorization header"})
				return
			}

			token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secretBytes, nil
			})
			if err != nil || !token.Valid {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token claims"})
				return
			}

			ident := identityFromClaims(claims)
			if ident.Anonymous() {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid sub in token"})
				return
			}

			ctx := context.WithValue(r.Context(), CtxIdentity, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

func identityFromClaims(claims jwt.MapClaims) identity.Identity {
	var uid string
	switch sub := claims["sub"].(type) {
	case string:
		uid = strings.TrimSpace(sub)
	case float64:
		// numeric subjects from older tokens
		uid = strconv.FormatInt(int64(sub), 10)
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)
	hasProfile, _ := claims["hasProfile"].(bool)

	return identity.Identity{
		UID:         uid,
		Email:       email,
		DisplayName: name,
		PhotoURL:    picture,
		HasProfile:  hasProfile,
	}
}

// Sessions binds the authenticated caller to its session, signing it in on
// the first request.
func Sessions(reg *service.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := IdentityFromContext(r.Context())
			sess, err := reg.Acquire(r.Context(), ident)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
				return
			}
			ctx := context.WithValue(r.Context(), CtxSession, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFromContext(ctx context.Context) identity.Identity {
	ident, _ := ctx.Value(CtxIdentity).(identity.Identity)
	return ident
}

func SessionFromContext(ctx context.Context) *service.Session {
	sess, _ := ctx.Value(CtxSession).(*service.Session)
	return sess
}
