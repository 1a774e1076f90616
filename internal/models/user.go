package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleEmployee        UserRole = "EMPLOYEE"
	RoleDepartmentChief UserRole = "DEPARTMENT_CHIEF"
	RolePrincipal       UserRole = "PRINCIPAL"
	RoleAdmin           UserRole = "ADMIN"
)

// authorityRank orders roles by review authority. Anyone at or above
// department-chief rank is exempt from chief review on their own requests.
var authorityRank = map[UserRole]int{
	RoleEmployee:        0,
	RoleDepartmentChief: 1,
	RolePrincipal:       2,
	RoleAdmin:           3,
}

// AtLeastChief reports whether the role carries department-chief authority or higher.
func (r UserRole) AtLeastChief() bool {
	return authorityRank[r] >= authorityRank[RoleDepartmentChief]
}

// User represents an employee stored in the users table. The two balance
// columns are only ever mutated through the ledger statements in the
// repository layer.
type User struct {
	ID              string     `db:"id" json:"id"`
	Login           string     `db:"login" json:"login"`
	PasswordHash    string     `db:"password_hash" json:"-"`
	FullName        string     `db:"full_name" json:"full_name"`
	Role            UserRole   `db:"role" json:"role"`
	DepartmentID    *string    `db:"department_id" json:"department_id,omitempty"`
	AnnualBalance   int        `db:"annual_balance" json:"annual_balance"`
	RewardBalance   int        `db:"reward_balance" json:"reward_balance"`
	LastAnnualReset time.Time  `db:"last_annual_reset" json:"last_annual_reset"`
	LastRewardCheck time.Time  `db:"last_reward_check" json:"last_reward_check"`
	Active          bool       `db:"active" json:"active"`
	LastLogin       *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
