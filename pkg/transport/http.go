package transport

import (
	"encoding/json"
	"net/http"

	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPMiddleware validates the bearer token of every request. Requests
// without one, or whose token is rejected, get 401 with a JSON body naming
// the error code; dependency failures get the status their code maps to.
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/orders", listOrders)
//	http.ListenAndServe(":8080", guard.HTTPMiddleware(mux))
func (g *Guard) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
		if raw == "" {
			WriteError(w, sserr.Rejectf(sserr.CodeTokenEmpty, g.consumer.ID,
				"missing or invalid authorization header"))
			return
		}
		ctx, err := g.authenticate(r.Context(), raw)
		if err != nil {
			WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WriteError writes err as a JSON body with the status its code maps to.
// Only the code is returned; messages may echo the token.
func WriteError(w http.ResponseWriter, err error) {
	se := sserr.FromError(err)
	status := se.HTTPStatus()
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: string(se.Code), Message: http.StatusText(status)})
}
