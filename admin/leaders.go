package admin

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/club-booking-client/gateway"
	"github.com/jrsteele09/club-booking-client/users"
	"github.com/pkg/errors"
)

// Leaders reads the public leader directory
type Leaders struct {
	gw gateway.Executor
}

func NewLeaders(gw gateway.Executor) (*Leaders, error) {
	if gw == nil {
		return nil, errors.New("[admin.NewLeaders] gateway is required")
	}
	return &Leaders{gw: gw}, nil
}

// List returns every leader
func (l *Leaders) List(ctx context.Context) ([]users.Identity, error) {
	res, err := l.gw.Execute(ctx, gateway.Request{Method: http.MethodGet, Path: "/leaders", Class: gateway.Public})
	if err != nil {
		return nil, errors.Wrap(err, "[Leaders.List]")
	}
	return decodeIdentities(res, "[Leaders.List]")
}

// ForDanceType returns the leader of danceType
func (l *Leaders) ForDanceType(ctx context.Context, danceType string) (*users.Identity, error) {
	if err := requireValue("danceType", danceType); err != nil {
		return nil, err
	}
	res, err := l.gw.Execute(ctx, gateway.Request{Method: http.MethodGet, Path: "/leaders/" + url.PathEscape(danceType), Class: gateway.Public})
	if err != nil {
		return nil, errors.Wrapf(err, "[Leaders.ForDanceType] %s", danceType)
	}
	return decodeIdentity(res, "[Leaders.ForDanceType]")
}
