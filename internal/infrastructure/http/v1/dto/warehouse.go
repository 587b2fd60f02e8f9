package dto

import (
	"stockpilot/internal/domain/catalogs/warehouse"
)

// --- Request DTOs ---

// CreateWarehouseRequest is the request body for creating a warehouse.
type CreateWarehouseRequest struct {
	Code        string                  `json:"code"`
	Name        string                  `json:"name" binding:"required"`
	Type        warehouse.WarehouseType `json:"type" binding:"required"`
	Location    *string                 `json:"location"`
	Priority    int                     `json:"priority"`
	Description *string                 `json:"description"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateWarehouseRequest) ToEntity() *warehouse.Warehouse {
	wh := warehouse.NewWarehouse(r.Code, r.Name, r.Type)
	wh.Location = r.Location
	wh.Priority = r.Priority
	wh.Description = r.Description
	return wh
}

// UpdateWarehouseRequest is the request body for updating a warehouse.
type UpdateWarehouseRequest struct {
	Code        string                  `json:"code"`
	Name        string                  `json:"name" binding:"required"`
	Type        warehouse.WarehouseType `json:"type" binding:"required"`
	Location    *string                 `json:"location,omitempty"`
	Priority    int                     `json:"priority"`
	IsActive    bool                    `json:"isActive"`
	Description *string                 `json:"description,omitempty"`
	Version     int                     `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateWarehouseRequest) ApplyTo(wh *warehouse.Warehouse) {
	wh.Code = r.Code
	wh.Name = r.Name
	wh.Type = r.Type
	wh.Location = r.Location
	wh.Priority = r.Priority
	wh.IsActive = r.IsActive
	wh.Description = r.Description
	wh.Version = r.Version
}

// --- Response DTOs ---

// WarehouseResponse is the response body for a warehouse.
type WarehouseResponse struct {
	ID           string                  `json:"id"`
	Code         string                  `json:"code"`
	Name         string                  `json:"name"`
	Type         warehouse.WarehouseType `json:"type"`
	Location     *string                 `json:"location,omitempty"`
	Priority     int                     `json:"priority"`
	IsActive     bool                    `json:"isActive"`
	Description  *string                 `json:"description,omitempty"`
	DeletionMark bool                    `json:"deletionMark"`
	Version      int                     `json:"version"`
}

// FromWarehouse creates response DTO from domain entity.
func FromWarehouse(wh *warehouse.Warehouse) *WarehouseResponse {
	return &WarehouseResponse{
		ID:           wh.ID.String(),
		Code:         wh.Code,
		Name:         wh.Name,
		Type:         wh.Type,
		Location:     wh.Location,
		Priority:     wh.Priority,
		IsActive:     wh.IsActive,
		Description:  wh.Description,
		DeletionMark: wh.DeletionMark,
		Version:      wh.Version,
	}
}
