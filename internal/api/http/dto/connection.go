package dto

import "time"

type InitiateConnectionRequest struct {
	DeviceID int64 `json:"deviceId" binding:"required"`
}

type InitiateConnectionResponse struct {
	ConnectionURL   string `json:"connectionUrl"`
	ConnectionLogID int64  `json:"connectionLogId"`
	GatewayConnID   string `json:"gatewayConnId"`
	DeviceName      string `json:"deviceName"`
	Protocol        string `json:"protocol"`
	CanControl      bool   `json:"canControl"`
}

type EndConnectionRequest struct {
	Status string `json:"status"`
}

type ConnectionLogResponse struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"userId"`
	DeviceID        int64      `json:"deviceId"`
	ConnectionStart time.Time  `json:"connectionStart"`
	ConnectionEnd   *time.Time `json:"connectionEnd,omitempty"`
	Duration        *int       `json:"duration,omitempty"`
	Status          string     `json:"status"`
	IPAddress       string     `json:"ipAddress"`
	UserAgent       string     `json:"userAgent"`
}
