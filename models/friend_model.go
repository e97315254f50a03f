package models

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Friend struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FirstName    string             `json:"firstName" bson:"firstName"`
	LastName     string             `json:"lastName" bson:"lastName"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"password"`
	Role         string             `json:"role" bson:"role"`
}

// FullName is the display name stored alongside positions.
func (f Friend) FullName() string {
	return f.FirstName + " " + f.LastName
}

// FriendInput is the client-supplied friend record. Pointer fields tell
// "absent" apart from "empty" so edits only touch what was sent.
type FriendInput struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
	Role      *string `json:"role,omitempty"`
}

// FriendDTO is the public projection returned by listing endpoints.
type FriendDTO struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func (f Friend) DTO() FriendDTO {
	return FriendDTO{FirstName: f.FirstName, LastName: f.LastName, Email: f.Email}
}

// EditResult reports how many documents an edit matched and changed.
type EditResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}
