package main

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/golang-jwt/jwt/v5"
)

const defaultCookieName = "user"

// identifier resolves the display name a request claims.
type identifier interface {
	user(r *http.Request) (string, bool)
	signIn(w http.ResponseWriter, name string) error
}

// cookieIdentity keeps the display name in a cookie. With a secret the
// cookie holds an HS256 token whose subject is the name; without one it
// holds the escaped name itself.
type cookieIdentity struct {
	name   string
	secret []byte
}

func newCookieIdentity(name, secret string) *cookieIdentity {
	if name == "" {
		name = defaultCookieName
	}
	c := &cookieIdentity{name: name}
	if secret != "" {
		c.secret = []byte(secret)
	}
	return c
}

func (c *cookieIdentity) user(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return "", false
	}

	var name string
	if c.secret != nil {
		name, err = c.parse(cookie.Value)
	} else {
		name, err = url.QueryUnescape(cookie.Value)
	}
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

func (c *cookieIdentity) signIn(w http.ResponseWriter, name string) error {
	if name == "" {
		return errInvalidName
	}

	value := url.QueryEscape(name)
	if c.secret != nil {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: name})
		signed, err := token.SignedString(c.secret)
		if err != nil {
			return err
		}
		value = signed
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c *cookieIdentity) parse(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}
