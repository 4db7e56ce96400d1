package dto

type DirectGrantRequest struct {
	UserID     int64  `json:"userId" binding:"required"`
	Permission string `json:"permission" binding:"required"`
}

type GroupGrantRequest struct {
	GroupID    int64  `json:"groupId" binding:"required"`
	Permission string `json:"permission" binding:"required"`
}

type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type GroupMemberRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type UpdateUserRequest struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}
