package handler

import (
	"time"

	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

// dbTimeout bounds every database call made from a handler.
const dbTimeout = 5 * time.Second

// ----- shared response DTOs -----

type userPart struct {
	ID            uint64  `json:"id"`
	Email         string  `json:"email"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	DisplayName   *string `json:"display_name,omitempty"`
	AvatarURL     *string `json:"avatar_url,omitempty"`
	EmailVerified bool    `json:"email_verified"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User  userPart  `json:"user"`
	Token tokenPart `json:"token"`
}

func toUserPart(u model.User) userPart {
	return userPart{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		DisplayName:   u.DisplayName,
		AvatarURL:     u.AvatarURL,
		EmailVerified: u.EmailVerified,
	}
}

// claimsFor builds the token payload from a user and its role snapshot.
// The default role becomes the acting role; when the seed data has not
// marked one yet, the first assignment stands in so a token is never
// issued without an acting role.
func claimsFor(u model.User, assigns []model.RoleAssignment) utils.Claims {
	c := utils.Claims{
		UserID: u.ID,
		Email:  u.Email,
	}
	if u.AvatarURL != nil {
		c.Avatar = *u.AvatarURL
	}
	for _, a := range assigns {
		c.Roles = append(c.Roles, a.RoleID.Name())
		if a.IsDefault {
			c.DefaultRole = a.RoleID.Name()
		}
	}
	if c.DefaultRole == "" && len(c.Roles) > 0 {
		c.DefaultRole = c.Roles[0]
	}
	return c
}
