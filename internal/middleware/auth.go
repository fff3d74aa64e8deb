// Package middleware содержит HTTP middleware для сервиса столовой.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const callerKey contextKey = "caller"

const (
	authCookieName = "mess_auth"
	authCookieTTL  = 30 * 24 * time.Hour
)

// Caller описывает проверенную возможность вызывающего менеджера: кто он,
// каким холлом управляет и каким токеном жалоб наделён. Сервис получает её
// как готовое доказательство полномочий и сам учётные данные не проверяет —
// их выпускает внешняя подсистема идентификации, разделяющая секрет подписи.
type Caller struct {
	ManagerID      string
	Hall           string
	Role           string
	ComplaintToken string
}

// AuthMiddleware выполняет проверку подписанной возможности вызывающего по cookie.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет cookie возможности и добавляет Caller в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		caller, ok := a.parseCookie(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetAuthCookie устанавливает cookie возможности для указанного вызывающего.
// Используется внешним эмитентом полномочий и тестами.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, caller Caller) {
	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    a.SignCaller(caller),
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

// SignCaller кодирует и подписывает возможность вызывающего.
func (a *AuthMiddleware) SignCaller(caller Caller) string {
	payload := strings.Join([]string{caller.ManagerID, caller.Hall, caller.Role, caller.ComplaintToken}, "|")
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))

	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(encoded))
	signature := mac.Sum(nil)

	return encoded + "." + hex.EncodeToString(signature)
}

func (a *AuthMiddleware) parseCookie(cookieValue string) (Caller, bool) {
	parts := strings.Split(cookieValue, ".")
	if len(parts) != 2 {
		return Caller{}, false
	}

	encoded := parts[0]
	signature := parts[1]

	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(encoded))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return Caller{}, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Caller{}, false
	}

	fields := strings.Split(string(payload), "|")
	if len(fields) != 4 {
		return Caller{}, false
	}

	caller := Caller{
		ManagerID:      fields[0],
		Hall:           fields[1],
		Role:           fields[2],
		ComplaintToken: fields[3],
	}

	if caller.ManagerID == "" || caller.Hall == "" {
		return Caller{}, false
	}

	return caller, true
}

// GetCallerFromContext извлекает возможность вызывающего из контекста запроса.
func GetCallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey).(Caller)
	return caller, ok
}
