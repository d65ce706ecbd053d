package directory

import (
	"time"

	"snaudit-backend/internal/engine"
	"snaudit-backend/internal/snow"
)

// User is one cached account row from the latest instance sync.
type User struct {
	SysID            string    `json:"sysId"`
	UserName         string    `json:"userName"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Department       string    `json:"department"`
	LicenseType      string    `json:"licenseType"`
	Active           bool      `json:"active"`
	LastLogin        string    `json:"lastLogin"`
	TransactionCount int       `json:"transactionCount"`
	Roles            []string  `json:"roles"`
	LicenseCost      float64   `json:"licenseCost"`
	SyncedAt         time.Time `json:"syncedAt"`
}

// Record converts the cached row into the engine's snapshot shape.
func (u User) Record() engine.UserRecord {
	return engine.UserRecord{
		SysID:            u.SysID,
		UserName:         u.UserName,
		Name:             u.Name,
		Email:            u.Email,
		Department:       u.Department,
		LicenseType:      u.LicenseType,
		Active:           u.Active,
		LastLogin:        u.LastLogin,
		TransactionCount: u.TransactionCount,
		Roles:            u.Roles,
		LicenseCost:      u.LicenseCost,
	}
}

func fromSnow(su snow.User) User {
	return User{
		SysID:            su.SysID,
		UserName:         su.UserName,
		Name:             su.Name,
		Email:            su.Email,
		Department:       su.Department,
		LicenseType:      su.LicenseType,
		Active:           su.Active,
		LastLogin:        su.LastLogin,
		TransactionCount: su.TransactionCount,
		Roles:            su.Roles,
	}
}
