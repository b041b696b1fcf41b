package models

import (
	"time"

	"gorm.io/gorm"
)

// Team roles
const (
	RoleLeader = "leader"
	RoleMember = "member"
)

// Team is a group of users collaborating on a shared project.
type Team struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatorID   string    `gorm:"index;size:36;not null" json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Team) TableName() string { return "teams" }

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = newID()
	}
	return nil
}

// TeamMember is a user's membership and role within a team.
type TeamMember struct {
	ID       string    `gorm:"primaryKey;size:36" json:"id"`
	TeamID   string    `gorm:"uniqueIndex:idx_team_user;size:36;not null" json:"team_id"`
	UserID   string    `gorm:"uniqueIndex:idx_team_user;size:36;not null" json:"user_id"`
	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role     string    `gorm:"size:20;default:member" json:"role"` // leader, member
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (TeamMember) TableName() string { return "team_members" }

func (m *TeamMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = newID()
	}
	return nil
}

// IsValidRole reports whether role is one of the team roles.
func IsValidRole(role string) bool {
	return role == RoleLeader || role == RoleMember
}
