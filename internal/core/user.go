package core

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Avatars is the fixed set of profile pictures handed out to new users and rooms.
var Avatars = []string{
	"https://cdn-icons-png.flaticon.com/128/17734/17734809.png",
	"https://cdn-icons-png.flaticon.com/128/17734/17734811.png",
	"https://cdn-icons-png.flaticon.com/512/17734/17734808.png",
	"https://cdn-icons-png.flaticon.com/512/17734/17734790.png",
	"https://cdn-icons-png.flaticon.com/512/18020/18020047.png",
	"https://cdn-icons-png.flaticon.com/512/218/218151.png",
	"https://cdn-icons-png.flaticon.com/512/924/924915.png",
	"https://cdn-icons-png.flaticon.com/512/4500/4500180.png",
	"https://cdn-icons-png.flaticon.com/512/3075/3075977.png",
	"https://cdn-icons-png.flaticon.com/512/599/599944.png",
	"https://cdn-icons-png.flaticon.com/512/1404/1404945.png",
}

// User is the local profile. It is created once and only its display name
// and avatar change afterwards.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"username"`
	Avatar      string `json:"avatar"`
}

// NewUser creates a profile with a random UserNNNN display name.
func NewUser() User {
	return User{
		ID:          uuid.NewString(),
		DisplayName: fmt.Sprintf("User%d", 1000+rand.IntN(9000)),
		Avatar:      RandomAvatar(),
	}
}

// RandomAvatar picks one of Avatars.
func RandomAvatar() string {
	return Avatars[rand.IntN(len(Avatars))]
}
