// Package httputil provides the JSON response helpers and middleware used by
// the admin API.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteNotFound(w, "plugin not found: Greeter")
//	httputil.WriteUnprocessable(w, err)
//
// Every error reply has the shape {"error": "..."}.
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(log),
//		httputil.LoggingMiddleware(log),
//	)(router)
package httputil
