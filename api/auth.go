package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"join-api/domain"
	"join-api/storage"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// postLogin scans the contact list for an exact email+password match.
// Every failure mode answers with the same generic 401 so the response
// does not reveal which half was wrong.
func postLogin(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		var req loginRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.Email == "" || req.Password == "" {
			return c.String(http.StatusUnauthorized, "wrong email or password")
		}
		contacts, err := store.FetchContacts(ctx)
		if err != nil {
			return storeError(c, err)
		}
		for _, contact := range contacts {
			if contact.Email == req.Email && contact.Password != "" && contact.Password == req.Password {
				user := domain.CurrentUser{Name: contact.Name}
				if err := store.PutCurrentUser(ctx, user); err != nil {
					return storeError(c, err)
				}
				return c.JSON(http.StatusOK, user)
			}
		}
		return c.String(http.StatusUnauthorized, "wrong email or password")
	}
}

func postGuestLogin(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := domain.Guest()
		if err := store.PutCurrentUser(c.Request().Context(), user); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, user)
	}
}

// postSignup creates a contact carrying the credentials and logs the new
// user in. The phone field stays empty until the user fills it in from
// the contacts view.
func postSignup(store Storage, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		var req signupRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if errs := validateSignup(req); errs != nil {
			return validationError(c, errs)
		}
		contacts, err := store.FetchContacts(ctx)
		if err != nil {
			return storeError(c, err)
		}
		for _, contact := range contacts {
			if contact.Email == req.Email {
				return validationError(c, domain.FieldErrors{"email": "email already registered"})
			}
		}
		release, done, err := checkIdempotency(c, deduper)
		if done {
			return err
		}
		contact := domain.Contact{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Color:    domain.RandomColor(),
		}
		saved, err := store.SaveContact(ctx, contact)
		if err != nil {
			if release != nil {
				release()
			}
			return storeError(c, err)
		}
		user := domain.CurrentUser{Name: saved.Name}
		if err := store.PutCurrentUser(ctx, user); err != nil {
			return storeError(c, err)
		}
		return c.JSON(http.StatusCreated, user)
	}
}

func validateSignup(req signupRequest) domain.FieldErrors {
	errs := domain.FieldErrors{}
	// Phone is not part of the signup form, so only name and email rules apply.
	contact := domain.Contact{Name: req.Name, Email: req.Email}
	for field, msg := range contact.Validate() {
		if field != "phone" {
			errs[field] = msg
		}
	}
	if req.Password == "" {
		errs["password"] = "password is required"
	} else if req.Password != req.ConfirmPassword {
		errs["confirmPassword"] = "passwords do not match"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// getSession reports who is currently logged in; 404 when nobody is.
func getSession(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := store.FetchCurrentUser(c.Request().Context())
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.String(http.StatusNotFound, "not logged in")
			}
			return storeError(c, err)
		}
		return c.JSON(http.StatusOK, user)
	}
}

func deleteSession(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.ClearCurrentUser(c.Request().Context()); err != nil {
			return storeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
