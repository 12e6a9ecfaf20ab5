package model

// Role identifies the kind of account the current session belongs to.
// The poller uses it to decide which feeds the user is entitled to.
type Role string

const (
	RoleStudent  Role = "student"
	RoleParent   Role = "parent"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
	RoleHod      Role = "hod"
	RoleFinance  Role = "finance"
	RoleRecords  Role = "records"
)
