package dto

import domainuser "devrim/internal/domain/user"

// User is the public profile embedded in chats and messages.
type User struct {
	ID        string `json:"_id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	GivenName string `json:"given_name"`
	Email     string `json:"email,omitempty"`
	Picture   string `json:"picture"`
}

type UserList struct {
	Items []User `json:"items" validate:"dive"`
}

func MapUser(u *domainuser.User) User {
	if u == nil {
		return User{}
	}
	return User{
		ID:        string(u.ID),
		Name:      u.Name,
		GivenName: u.GivenName,
		Email:     u.Email,
		Picture:   u.Picture,
	}
}

func MapUsers(users []*domainuser.User) []User {
	out := make([]User, 0, len(users))
	for _, u := range users {
		if u == nil {
			continue
		}
		out = append(out, MapUser(u))
	}
	return out
}
