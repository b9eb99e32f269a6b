// Package admin wraps the account, leader and course administration endpoints.
// Mutations are critical calls: a 401 triggers one credential refresh and a replay.
package admin

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/club-booking-client/gateway"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
	"github.com/jrsteele09/club-booking-client/users"
	"github.com/pkg/errors"
)

// NewUser is an account created by an admin
type NewUser struct {
	Username  string         `json:"username" validate:"required,min=3"`
	Name      string         `json:"name,omitempty"`
	Email     string         `json:"email" validate:"required,email"`
	Password  string         `json:"password" validate:"required,min=6"`
	Role      users.RoleType `json:"role,omitempty" validate:"omitempty,oneof=member leader admin"`
	DanceType string         `json:"dance_type,omitempty"`
}

// ProfileUpdate changes the caller's own profile. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
}

type roleUpdate struct {
	Role      users.RoleType `json:"role" validate:"required,oneof=member leader admin"`
	DanceType *string        `json:"dance_type"`
}

type passwordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// Users manages accounts
type Users struct {
	gw       gateway.Executor
	validate *validator.Validate
}

func NewUsers(gw gateway.Executor) (*Users, error) {
	if gw == nil {
		return nil, errors.New("[admin.NewUsers] gateway is required")
	}
	return &Users{gw: gw, validate: newValidator()}, nil
}

// List returns every account
func (u *Users) List(ctx context.Context) ([]users.Identity, error) {
	return u.list(ctx, "/users", "[Users.List]")
}

// Create adds an account
func (u *Users) Create(ctx context.Context, nu NewUser) (*users.Identity, error) {
	if err := validateInput(u.validate, nu); err != nil {
		return nil, err
	}
	res, err := u.gw.Execute(ctx, gateway.Request{Method: http.MethodPost, Path: "/users", Body: nu, Class: gateway.Critical})
	if err != nil {
		return nil, errors.Wrap(err, "[Users.Create]")
	}
	return decodeIdentity(res, "[Users.Create]")
}

// Delete removes an account
func (u *Users) Delete(ctx context.Context, id string) error {
	if err := requireValue("id", id); err != nil {
		return err
	}
	_, err := u.gw.Execute(ctx, gateway.Request{Method: http.MethodDelete, Path: "/users/" + url.PathEscape(id), Class: gateway.Critical})
	return errors.Wrapf(err, "[Users.Delete] %s", id)
}

// ByRole lists the accounts holding role
func (u *Users) ByRole(ctx context.Context, role users.RoleType) ([]users.Identity, error) {
	if !role.Valid() {
		return nil, &clienterrors.ValidationError{Field: "role", Reason: "must be one of member leader admin"}
	}
	return u.list(ctx, "/users/role/"+url.PathEscape(string(role)), "[Users.ByRole]")
}

// UpdateRole sets the role of an account. A non-nil danceType also changes
// its affiliation; an empty string clears it.
func (u *Users) UpdateRole(ctx context.Context, id string, role users.RoleType, danceType *string) (*users.Identity, error) {
	if err := requireValue("id", id); err != nil {
		return nil, err
	}
	body := roleUpdate{Role: role, DanceType: danceType}
	if err := validateInput(u.validate, body); err != nil {
		return nil, err
	}
	res, err := u.gw.Execute(ctx, gateway.Request{Method: http.MethodPut, Path: "/users/" + url.PathEscape(id) + "/role", Body: body, Class: gateway.Critical})
	if err != nil {
		return nil, errors.Wrapf(err, "[Users.UpdateRole] %s", id)
	}
	return decodeIdentity(res, "[Users.UpdateRole]")
}

// ByDanceType lists the accounts affiliated with danceType
func (u *Users) ByDanceType(ctx context.Context, danceType string) ([]users.Identity, error) {
	if err := requireValue("danceType", danceType); err != nil {
		return nil, err
	}
	return u.list(ctx, "/users/dance-type/"+url.PathEscape(danceType), "[Users.ByDanceType]")
}

// UpdateProfile changes the caller's name or email
func (u *Users) UpdateProfile(ctx context.Context, p ProfileUpdate) (*users.Identity, error) {
	if err := validateInput(u.validate, p); err != nil {
		return nil, err
	}
	res, err := u.gw.Execute(ctx, gateway.Request{Method: http.MethodPatch, Path: "/users/profile", Body: p, Class: gateway.Critical})
	if err != nil {
		return nil, errors.Wrap(err, "[Users.UpdateProfile]")
	}
	return decodeIdentity(res, "[Users.UpdateProfile]")
}

// ChangePassword replaces the caller's password
func (u *Users) ChangePassword(ctx context.Context, current, next string) error {
	body := passwordChange{CurrentPassword: current, NewPassword: next}
	if err := validateInput(u.validate, body); err != nil {
		return err
	}
	_, err := u.gw.Execute(ctx, gateway.Request{Method: http.MethodPatch, Path: "/users/password", Body: body, Class: gateway.Critical})
	return errors.Wrap(err, "[Users.ChangePassword]")
}

func (u *Users) list(ctx context.Context, path, op string) ([]users.Identity, error) {
	res, err := u.gw.Execute(ctx, gateway.Request{Method: http.MethodGet, Path: path, Class: gateway.Soft})
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return decodeIdentities(res, op)
}

func decodeIdentity(res *gateway.Result, op string) (*users.Identity, error) {
	var ident users.Identity
	found, err := res.Field("user", &ident)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if found {
		return &ident, nil
	}
	if err := res.Decode(&ident); err != nil {
		return nil, errors.Wrap(err, op)
	}
	return &ident, nil
}

// decodeIdentities accepts a bare array or an object holding one under "users"
func decodeIdentities(res *gateway.Result, op string) ([]users.Identity, error) {
	var list []users.Identity
	if found, err := res.Field("users", &list); err != nil || found {
		return list, errors.Wrap(err, op)
	}
	if err := res.Decode(&list); err != nil {
		return nil, errors.Wrap(err, op)
	}
	return list, nil
}
