package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"google.golang.org/grpc/metadata"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Identity is asserted by the upstream auth layer and trusted as-is.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRoles = "X-User-Roles"

	metadataUserID    = "x-user-id"
	metadataUserRoles = "x-user-roles"

	actorLocal = "actor"
)

func parseActor(userID, roles string) (domain.Actor, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(userID), 10, 64)
	if err != nil || id <= 0 {
		return domain.Actor{}, domain.Unauthorized("missing or invalid caller identity")
	}
	actor := domain.Actor{UserID: id}
	for _, r := range strings.Split(roles, ",") {
		switch role := domain.Role(strings.ToUpper(strings.TrimSpace(r))); role {
		case domain.RoleUser, domain.RoleSeller, domain.RoleAdmin:
			actor.Roles = append(actor.Roles, role)
		}
	}
	if len(actor.Roles) == 0 {
		actor.Roles = []domain.Role{domain.RoleUser}
	}
	return actor, nil
}

// RequireIdentity resolves the caller from trusted headers.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := parseActor(c.Get(HeaderUserID), c.Get(HeaderUserRoles))
		if err != nil {
			return err
		}
		c.Locals(actorLocal, actor)
		return c.Next()
	}
}

func RequireRole(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !actorFrom(c).HasRole(role) {
			return domain.Forbidden("%s role required", role)
		}
		return c.Next()
	}
}

func actorFrom(c *fiber.Ctx) domain.Actor {
	actor, _ := c.Locals(actorLocal).(domain.Actor)
	return actor
}

func actorFromMetadata(ctx context.Context) (domain.Actor, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	first := func(key string) string {
		if v := md.Get(key); len(v) > 0 {
			return v[0]
		}
		return ""
	}
	return parseActor(first(metadataUserID), first(metadataUserRoles))
}

// OutgoingIdentity attaches caller identity to an outgoing gRPC context.
func OutgoingIdentity(ctx context.Context, actor domain.Actor) context.Context {
	roles := make([]string, 0, len(actor.Roles))
	for _, r := range actor.Roles {
		roles = append(roles, string(r))
	}
	return metadata.AppendToOutgoingContext(ctx,
		metadataUserID, strconv.FormatInt(actor.UserID, 10),
		metadataUserRoles, strings.Join(roles, ","),
	)
}
