package cont

import (
	"context"

	"alphagate/entity"
)

type ctxKey string

const PrincipalKey ctxKey = "principal"

func PutPrincipal(c context.Context, p *entity.Principal) context.Context {
	return context.WithValue(c, PrincipalKey, *p)
}

// GetPrincipal returns nil when the request was not authenticated.
func GetPrincipal(c context.Context) *entity.Principal {
	p, ok := c.Value(PrincipalKey).(entity.Principal)
	if !ok {
		return nil
	}
	return &p
}
