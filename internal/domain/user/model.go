package user

import "time"

// User владелец аккаунта. ID аккаунта совпадает с ID пользователя.
type User struct {
	ID        int
	Login     string
	Password  string // хэш
	CreatedAt time.Time
}

type Credentials struct {
	Login    string `json:"login" validate:"required" minLength:"3" maxLength:"32"`
	Password string `json:"password" validate:"required" minLength:"8" maxLength:"72"`
}
