package main

import (
	"errors"
	"net/http"
)

// Client input errors. The text is what the client reads.
var (
	errRateLimited      = errors.New("max 1 message per second per IP!")
	errNotAuthenticated = errors.New("not signed in")
	errInvalidBody      = errors.New("invalid body")
	errMethodNotAllowed = errors.New("method not accepted")
	errInvalidName      = errors.New("name is not valid")
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, errRateLimited),
		errors.Is(err, errNotAuthenticated),
		errors.Is(err, errInvalidBody),
		errors.Is(err, errInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func sendError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}
