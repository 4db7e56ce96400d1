package dto

import "time"

type CreateDeviceRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Host        string   `json:"host" binding:"required"`
	Port        int      `json:"port" binding:"required"`
	Protocol    string   `json:"protocol" binding:"required"`
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	PrivateKey  string   `json:"privateKey"`
	Tags        []string `json:"tags"`
}

type UpdateDeviceRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Host        *string  `json:"host"`
	Port        *int     `json:"port"`
	Protocol    *string  `json:"protocol"`
	Username    *string  `json:"username"`
	Password    *string  `json:"password"`
	PrivateKey  *string  `json:"privateKey"`
	Tags        []string `json:"tags"`
	IsActive    *bool    `json:"isActive"`
}

// DeviceResponse never carries credential material.
type DeviceResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	Protocol    string    `json:"protocol"`
	Username    string    `json:"username"`
	Status      string    `json:"status"`
	Tags        []string  `json:"tags"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
