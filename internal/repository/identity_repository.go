package repository

import (
	"context"
	"net/http"

	"github.com/golabing/console/internal/models"
)

// IdentityRepository wraps the backend's authentication endpoints.
type IdentityRepository struct {
	client *BackendClient
}

// NewIdentityRepository constructs an identity repository.
func NewIdentityRepository(client *BackendClient) *IdentityRepository {
	return &IdentityRepository{client: client}
}

// Login authenticates credentials and returns the user plus the cookies the
// backend issued for the new session.
func (r *IdentityRepository) Login(ctx context.Context, email, password string) (*models.SessionUser, []models.BackendCookie, error) {
	var out struct {
		Result *models.SessionUser `json:"result"`
		User   *models.SessionUser `json:"user"`
	}
	reply, err := r.client.Post("login").
		JSON(map[string]string{"email": email, "password": password}).
		Exchange(ctx, &out)
	if err != nil {
		return nil, nil, err
	}

	user := out.Result
	if user == nil {
		user = out.User
	}
	return normaliseUser(user), cookiesFrom(reply.Cookies), nil
}

// Profile fetches the current user for the forwarded credentials. A nil user
// with no error means the backend answered without a profile.
func (r *IdentityRepository) Profile(ctx context.Context, creds []models.BackendCookie) (*models.SessionUser, error) {
	var out struct {
		User *models.SessionUser `json:"user"`
	}
	if err := r.client.Get("user_ms/user_profile").Cookies(creds).Do(ctx, &out); err != nil {
		return nil, err
	}
	return normaliseUser(out.User), nil
}

// Logout ends the backend session for email.
func (r *IdentityRepository) Logout(ctx context.Context, email string, creds []models.BackendCookie) error {
	return r.client.Post("user_ms/logout").
		Cookies(creds).
		JSON(map[string]string{"email": email}).
		Do(ctx, nil)
}

func normaliseUser(user *models.SessionUser) *models.SessionUser {
	if user == nil || user.ID == "" {
		return nil
	}
	if role, ok := models.ParseRole(string(user.Role)); ok {
		user.Role = role
	}
	return user
}

func cookiesFrom(cookies []*http.Cookie) []models.BackendCookie {
	out := make([]models.BackendCookie, 0, len(cookies))
	for _, ck := range cookies {
		if ck.Name == "" || ck.MaxAge < 0 {
			continue
		}
		out = append(out, models.BackendCookie{Name: ck.Name, Value: ck.Value})
	}
	return out
}
